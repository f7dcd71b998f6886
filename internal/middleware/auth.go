// Package middleware содержит HTTP middleware витрины кафе.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

type contextKey string

const telegramUserKey contextKey = "telegramUser"

const initDataHeader = "X-Telegram-Init-Data"

// TelegramUser описывает пользователя Telegram, открывшего мини-приложение.
type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// AuthMiddleware проверяет подпись initData мини-приложения Telegram.
// Подпись считается по схеме WebApp: секрет — HMAC-SHA256 от токена бота
// с ключом "WebAppData", хэш — HMAC-SHA256 от data-check-string с этим секретом.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware для указанного токена бота.
func NewAuthMiddleware(botToken string) *AuthMiddleware {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))

	return &AuthMiddleware{
		secretKey: mac.Sum(nil),
	}
}

// Require пропускает запрос только с корректно подписанным initData
// и добавляет пользователя Telegram в контекст запроса.
func (a *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := a.parseInitData(readInitData(r))
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), telegramUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional добавляет пользователя Telegram в контекст, если initData
// присутствует и подпись верна. Запрос без подписи проходит дальше анонимно:
// мини-приложение может работать и вне Telegram.
func (a *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := a.parseInitData(readInitData(r)); ok {
			r = r.WithContext(context.WithValue(r.Context(), telegramUserKey, user))
		}
		next.ServeHTTP(w, r)
	})
}

func readInitData(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "tma ") {
		return strings.TrimPrefix(auth, "tma ")
	}
	return r.Header.Get(initDataHeader)
}

func (a *AuthMiddleware) parseInitData(raw string) (*TelegramUser, bool) {
	if raw == "" {
		return nil, false
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, false
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, false
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	checkString := strings.Join(pairs, "\n")

	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(checkString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return nil, false
	}

	var user TelegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return nil, false
	}
	if user.ID == 0 {
		return nil, false
	}

	return &user, true
}

// GetTelegramUserFromContext извлекает пользователя Telegram из контекста запроса.
func GetTelegramUserFromContext(ctx context.Context) (*TelegramUser, bool) {
	user, ok := ctx.Value(telegramUserKey).(*TelegramUser)
	return user, ok
}
