package httpx

import "net/http"

// Middleware wraps an http.Handler with additional behaviour.
type Middleware func(http.Handler) http.Handler

// Chain applies mws to h so that the first middleware listed is the
// outermost one and sees the request first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover turns a panicking handler into a 500 so one bad request does not
// take the listener down with it.
func Recover(onPanic func(r *http.Request, v any)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					if onPanic != nil {
						onPanic(r, v)
					}
					WriteError(w, ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
