package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

// StoreIdentity writes identity into sess.
func StoreIdentity(sess *shared.Session, identity tenancy.Identity) {
	sess.SetUser(identity.UserID)
	if identity.TenantID != "" {
		sess.Set(shared.SessionTenantKey, identity.TenantID)
	} else {
		sess.Delete(shared.SessionTenantKey)
	}
	sess.Set(shared.SessionSuperuserKey, strconv.FormatBool(identity.IsSuperuser))
}

// IdentityFromSession reads the identity stored by StoreIdentity.
func IdentityFromSession(sess *shared.Session) (tenancy.Identity, bool) {
	if sess == nil || sess.User() == "" {
		return tenancy.Identity{}, false
	}
	superuser, _ := strconv.ParseBool(sess.Get(shared.SessionSuperuserKey))
	return tenancy.Identity{
		UserID:      sess.User(),
		TenantID:    sess.Get(shared.SessionTenantKey),
		IsSuperuser: superuser,
	}, true
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
