package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"taskboard-api/domain"
)

const credentialsMaxSize = 4 << 10

// Issuer mints HS256 bearer tokens for first-party signup/login.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer signing with the given shared secret.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if len(secret) == 0 {
		panic("api.NewIssuer: empty secret")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: secret, ttl: ttl}
}

// Token issues a signed token carrying the user's identity claims.
func (i *Issuer) Token(user domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.Email,
		"email": user.Email,
		"name":  user.Name,
		"iat":   now.Unix(),
		"exp":   now.Add(i.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func signup(users UserStore, issuer *Issuer, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var creds domain.Credentials
		if err := decodeBody(c.Request().Body, credentialsMaxSize, &creds); err != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid body"})
		}
		if err := creds.Validate(true); err != nil {
			return respondError(c, logger, err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
		if err != nil {
			return respondError(c, logger, err)
		}

		user := domain.User{Name: creds.Name, Email: creds.Email, CreatedAt: time.Now().UTC()}
		if err := users.CreateUser(ctx, user, hash); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return c.JSON(http.StatusBadRequest, messageResponse{Message: "email already registered"})
			}
			return respondError(c, logger, err)
		}

		token, err := issuer.Token(user)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusCreated, authResponse{Token: token, User: user})
	}
}

func login(users UserStore, issuer *Issuer, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var creds domain.Credentials
		if err := decodeBody(c.Request().Body, credentialsMaxSize, &creds); err != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid body"})
		}
		if err := creds.Validate(false); err != nil {
			return respondError(c, logger, err)
		}

		user, hash, err := users.FindUser(ctx, creds.Email)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.JSON(http.StatusUnauthorized, messageResponse{Message: "invalid credentials"})
			}
			return respondError(c, logger, err)
		}
		if bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)) != nil {
			return c.JSON(http.StatusUnauthorized, messageResponse{Message: "invalid credentials"})
		}

		token, err := issuer.Token(user)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, authResponse{Token: token, User: user})
	}
}

func decodeBody(body io.Reader, maxSize int64, out any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(body, maxSize))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
