package middlewares

import (
	"errors"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"billing-backend/database"
	"billing-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
	// API-key tokens look like bk_<schema>_<prefix>_<secret>; everything else
	// in the Authorization header is treated as a JWT.
	apiKeyPrefix = "bk_"
)

// Claims is our custom JWT payload (subject=userID, plus tenant schema).
type Claims struct {
	Schema string `json:"schema"`
	jwt.RegisteredClaims
}

var (
	secretOnce sync.Once
	jwtSecret  []byte
	secretErr  error
)

func loadJWTSecret() error {
	secretOnce.Do(func() {
		// Prefer JWT_SECRET_KEY, fallback to JWT_SECRET
		sec := os.Getenv("JWT_SECRET_KEY")
		if strings.TrimSpace(sec) == "" {
			sec = os.Getenv("JWT_SECRET")
		}
		if strings.TrimSpace(sec) == "" {
			secretErr = errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
			return
		}
		jwtSecret = []byte(sec)
	})
	return secretErr
}

// Authenticate validates the bearer credential (user JWT or third-party API
// key) and populates c.Locals("userID","schema").
func Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get(authHeader)
		if h == "" || !strings.HasPrefix(strings.ToLower(h), strings.ToLower(bearerPrefix)) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "missing/invalid Authorization header"})
		}
		raw := strings.TrimSpace(h[len(bearerPrefix):])
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid bearer token"})
		}

		if strings.HasPrefix(raw, apiKeyPrefix) {
			return authenticateApiKey(c, raw)
		}
		return authenticateJWT(c, raw)
	}
}

func authenticateJWT(c *fiber.Ctx, raw string) error {
	if err := loadJWTSecret(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "server auth not configured",
		})
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var claims Claims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid or expired token"})
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Schema) == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "token missing subject/schema"})
	}

	// Stash tenant context for the request
	c.Locals("userID", claims.Subject)
	c.Locals("schema", claims.Schema)

	return c.Next()
}

// Same shape the registration sanitizer enforces; anything else never names a
// real tenant schema and must not reach search_path.
var schemaNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// parseApiKeyToken splits bk_<schema>_<prefix>_<secret>. Schema names may
// themselves contain underscores, so prefix and secret are anchored from the
// right (both are generated without underscores).
func parseApiKeyToken(raw string) (schema, prefix, secret string, ok bool) {
	body := strings.TrimPrefix(raw, apiKeyPrefix)
	i := strings.LastIndex(body, "_")
	if i < 0 {
		return "", "", "", false
	}
	secret = body[i+1:]
	j := strings.LastIndex(body[:i], "_")
	if j < 0 {
		return "", "", "", false
	}
	schema, prefix = body[:j], body[j+1:i]
	if prefix == "" || secret == "" || !schemaNamePattern.MatchString(schema) {
		return "", "", "", false
	}
	return schema, prefix, secret, true
}

// authenticateApiKey resolves a bk_<schema>_<prefix>_<secret> token against the
// tenant's api_keys table, using a short schema-pinned transaction (same
// pattern as the idempotency guard).
func authenticateApiKey(c *fiber.Ctx, raw string) error {
	schema, prefix, secret, ok := parseApiKeyToken(raw)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "malformed api key"})
	}

	var key models.ApiKey
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`SET LOCAL search_path = "` + schema + `", public`).Error; err != nil {
			return err
		}
		return tx.Where("prefix = ? AND revoked_at IS NULL", prefix).First(&key).Error
	})
	if err != nil || key.CompareSecret(secret) != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid api key"})
	}

	// Best effort; no reason to fail the request over it.
	now := time.Now().UTC()
	_ = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`SET LOCAL search_path = "` + schema + `", public`).Error; err != nil {
			return nil
		}
		return tx.Model(&models.ApiKey{}).Where("id = ?", key.Id).
			Update("last_used_at", &now).Error
	})

	c.Locals("userID", "apikey:"+key.Id)
	c.Locals("schema", schema)

	return c.Next()
}

// GenerateJWT signs a new HS256 token for the given user & schema, expiring in 24h.
func GenerateJWT(userID, schema string) (string, error) {
	if err := loadJWTSecret(); err != nil {
		return "", err
	}
	now := time.Now()
	claims := &Claims{
		Schema: schema,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}
