package httpx

import "context"

type ctxKey string

const ctxKeySubject ctxKey = "subject"

// WithSubject records the authenticated subject for downstream middleware
// such as per-user rate limiting.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKeySubject, subject)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxKeySubject).(string)
	return s, ok && s != ""
}
