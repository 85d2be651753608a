// Package config loads keyward settings from the environment.
//
// # Overview
//
// Every setting is an environment variable with a KEYWARD_ prefix and a
// sensible default, so the gateway starts with no configuration at all for
// local development.
//
// # Variables
//
// Listener and public identity:
//
//	KEYWARD_LISTEN_ADDRESS            bind address (default all interfaces)
//	KEYWARD_LISTEN_PORT               default 8080
//	KEYWARD_PUBLIC_URL                default http://localhost:<port>
//	KEYWARD_AUTH_ENTRY_URL            default <PUBLIC_URL>auth/
//	KEYWARD_RP_ID                     WebAuthn relying party id, default localhost
//	KEYWARD_RP_NAME                   default RP_ID
//
// Secrets and sessions:
//
//	KEYWARD_CHALLENGE_HMAC_ALGO       sha256, sha384 or sha512
//	KEYWARD_CHALLENGE_HMAC_SECRET     random when unset
//	KEYWARD_SESSION_JWT_ALGO          HS256, HS384 or HS512
//	KEYWARD_SESSION_JWT_SECRET        random when unset
//	KEYWARD_SESSION_COOKIE            cookie name, default x-auth-jwt
//	KEYWARD_SESSION_EXPIRATION        Go duration, default 24h
//
// Forward-auth headers:
//
//	KEYWARD_FORWARDED_PROTO_HEADER    default X-Forwarded-Proto
//	KEYWARD_FORWARDED_HOST_HEADER     default X-Forwarded-Host
//	KEYWARD_FORWARDED_URI_HEADER      default X-Forwarded-Uri
//	KEYWARD_USER_NAME_HEADER          empty disables
//	KEYWARD_USER_DISPLAY_NAME_HEADER  empty disables
//	KEYWARD_USER_ROLES_HEADER         empty disables
//
// Storage and observability:
//
//	KEYWARD_DB_PATH                   default data/keyward.db
//	KEYWARD_AUDIT_PATH                default log/audit.log
//	KEYWARD_VERBOSE                   true enables debug logging
//	KEYWARD_LOG_FORMAT                text or json
//
// Random fallback secrets keep single-instance development painless but mean
// issued sessions are invalidated by a restart. Production deployments should
// pin both secrets.
package config
