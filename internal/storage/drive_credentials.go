package storage

import (
	"context"
	"errors"
	"strings"

	"expensecontrol/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// ErrNoDriveCredentials means none of the supported credential sources is configured.
var ErrNoDriveCredentials = errors.New("drive credentials not configured: set GOOGLE_OAUTH_REFRESH_TOKEN or GOOGLE_SERVICE_ACCOUNT_JSON/FILE")

// DriveCredentials picks the first configured credential source: an OAuth
// refresh token, inline service account JSON, then a service account file.
func DriveCredentials(ctx context.Context, cfg config.DriveConfig) ([]option.ClientOption, error) {
	if token := strings.TrimSpace(cfg.OAuthRefreshToken); token != "" {
		clientID := strings.TrimSpace(cfg.OAuthClientID)
		secret := strings.TrimSpace(cfg.OAuthClientSecret)
		if clientID == "" || secret == "" {
			return nil, errors.New("GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET are required with a refresh token")
		}
		oauthCfg := &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: secret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{drive.DriveScope},
		}
		ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: token})
		return []option.ClientOption{option.WithTokenSource(ts)}, nil
	}

	if raw := strings.TrimSpace(cfg.ServiceAccountJSON); raw != "" {
		if strings.HasPrefix(raw, "{") {
			// private keys pasted into env files arrive double-escaped
			raw = strings.ReplaceAll(raw, `\\n`, `\n`)
			return []option.ClientOption{
				option.WithCredentialsJSON([]byte(raw)),
				option.WithScopes(drive.DriveScope),
			}, nil
		}
		// a path given through the JSON variable
		return []option.ClientOption{option.WithCredentialsFile(raw), option.WithScopes(drive.DriveScope)}, nil
	}

	if path := strings.TrimSpace(cfg.ServiceAccountFile); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path), option.WithScopes(drive.DriveScope)}, nil
	}

	return nil, ErrNoDriveCredentials
}
