package sessions

const (
	queryGetSession = `
		SELECT session_value
		FROM storefront_sessions
		WHERE session_key = $1
	`

	queryUpsertSession = `
		INSERT INTO storefront_sessions (session_key, session_value, session_expiry)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_key)
		DO UPDATE SET session_value = EXCLUDED.session_value, session_expiry = EXCLUDED.session_expiry
	`

	queryUpdateSessionExpiry = `
		UPDATE storefront_sessions
		SET session_expiry = $1
		WHERE session_key = $2
	`

	queryDeleteSession = `
		DELETE FROM storefront_sessions
		WHERE session_key = $1
	`

	queryListExpiredSessions = `
		SELECT session_id, session_key
		FROM storefront_sessions
		WHERE session_expiry < $1
	`

	queryDeleteSessionBatch = `
		DELETE FROM storefront_sessions
		WHERE session_id = ANY($1)
	`
)
