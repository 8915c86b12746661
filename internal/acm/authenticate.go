package acm

import (
	"crypto/subtle"
	"fmt"

	"github.com/sevigo/locomote-server/internal/core"
)

// Credentials is what the HTTP layer extracts from a request before
// authentication: a Basic-auth pair, or nothing for an unauthenticated
// "test" probe.
type Credentials struct {
	User     string
	Password string
	Present  bool
}

// Method authenticates Credentials against an AuthSettings, returning
// the resulting user identity.
type Method interface {
	Authenticate(settings *core.AuthSettings, creds Credentials) (core.UserInfo, error)
}

// methods is the fixed registry of authentication strategies a
// manifest's auth.method can name.
var methods = map[string]Method{
	"basic": basicMethod{},
	"test":  testMethod{},
}

// Authenticate dispatches to the method named by settings.Method. realm
// is used to build the WWW-Authenticate challenge on failure.
func Authenticate(settings *core.AuthSettings, creds Credentials, realm string) (core.UserInfo, error) {
	if settings.Method == "" {
		return core.UserInfo{Authenticated: true}, nil
	}
	m, ok := methods[settings.Method]
	if !ok {
		return core.UserInfo{}, fmt.Errorf("%w: unknown auth method %q", core.ErrConfigError, settings.Method)
	}
	user, err := m.Authenticate(settings, creds)
	if err != nil {
		return core.UserInfo{}, authError(creds, realm, err)
	}
	return user, nil
}

func authError(creds Credentials, realm string, cause error) error {
	if !creds.Present {
		return &core.AuthError{
			Status:  401,
			Message: "authentication required",
			Headers: map[string]string{"WWW-Authenticate": fmt.Sprintf(`Basic realm=%q`, realm)},
			Kind:    core.ErrAuthRequired,
		}
	}
	return &core.AuthError{
		Status:  401,
		Message: cause.Error(),
		Headers: map[string]string{"WWW-Authenticate": fmt.Sprintf(`Basic realm=%q`, realm)},
		Kind:    core.ErrAuthFailed,
	}
}

// basicMethod checks creds.User/Password against settings.Users, a
// map of username to password as configured (no hashing is applied;
// the presented password is compared to it in constant time).
type basicMethod struct{}

func (basicMethod) Authenticate(settings *core.AuthSettings, creds Credentials) (core.UserInfo, error) {
	if !creds.Present {
		return core.UserInfo{}, fmt.Errorf("no credentials presented")
	}
	want, ok := settings.Users[creds.User]
	if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(creds.Password)) != 1 {
		return core.UserInfo{}, fmt.Errorf("invalid credentials")
	}
	return core.UserInfo{User: creds.User, Authenticated: true}, nil
}

// testMethod is a fixed-identity method useful for local development
// and integration tests; unlike the bug the spec notes in the source
// implementation (§9), this returns the user it constructs.
type testMethod struct{}

func (testMethod) Authenticate(settings *core.AuthSettings, creds Credentials) (core.UserInfo, error) {
	user := core.UserInfo{User: "test", Authenticated: true, Groups: []string{"test"}}
	return user, nil
}
