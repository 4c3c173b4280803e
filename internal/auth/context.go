// ABOUTME: Carries the authenticated token subject through request handling
// ABOUTME: Handlers read it to attribute settings changes and chat requests in logs

package auth

import "context"

type subjectKey struct{}

func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns "" when the gateway runs without a JWT secret.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey{}).(string)
	return sub
}
