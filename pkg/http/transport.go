package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

func NewAPIRouter() *mux.Router {
	r := mux.NewRouter()
	r.NewRoute().Name(Call).Methods("POST").Path("/api.v1/call/{" + MethodVar + "}")
	return r
}

// MethodName returns the method named by a request matched on the
// Call route.
func MethodName(r *http.Request) string {
	return mux.Vars(r)[MethodVar]
}

// MakeURL resolves the named route against endpoint. routeVars are
// name/value pairs for the route's path variables; values are
// inserted as they are and escaped when the URL is rendered.
func MakeURL(endpoint string, router *mux.Router, routeName string, routeVars ...string) (*url.URL, error) {
	if len(routeVars)%2 != 0 {
		panic("routeVars must be even!")
	}

	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing endpoint %s", endpoint)
	}
	if endpointURL.Scheme == "" || endpointURL.Host == "" {
		return nil, errors.Errorf("endpoint %q is not an absolute URL", endpoint)
	}
	route := router.Get(routeName)
	if route == nil {
		return nil, errors.New("no route with name " + routeName)
	}
	routeURL, err := route.URLPath(routeVars...)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route path %s", routeName)
	}

	endpointURL.Path = path.Join("/", endpointURL.Path, routeURL.Path)
	endpointURL.RawPath = ""
	return endpointURL, nil
}

func WriteError(w http.ResponseWriter, r *http.Request, code int, err error) {
	// Clients of the dispatch protocol send "Accept: application/json"
	// and echo whatever body they get into their error message. Anything
	// else (curl by hand, a browser) gets the error text.
	if len(r.Header.Get("Accept")) > 0 {
		switch negotiateContentType(r, []string{"application/json", "text/plain"}) {
		case "application/json":
			body, encodeErr := json.Marshal(errorBody{Error: err.Error()})
			if encodeErr != nil {
				w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, "Error encoding error response: %s\n\nOriginal error: %s", encodeErr.Error(), err.Error())
				return
			}
			w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "application/json; charset=utf-8")
			w.WriteHeader(code)
			w.Write(body)
			return
		}
	}
	w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprint(w, err.Error())
}

type errorBody struct {
	Error string `json:"error"`
}

func JSONResponse(w http.ResponseWriter, r *http.Request, result interface{}) {
	body, err := json.Marshal(result)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// ErrorResponse reports err with the status carried by a *StatusError
// anywhere in its cause chain, or 500 if there is none.
func ErrorResponse(w http.ResponseWriter, r *http.Request, apiError error) {
	code := http.StatusInternalServerError
	if statusErr, ok := errors.Cause(apiError).(*StatusError); ok {
		code = statusErr.Code
	}
	WriteError(w, r, code, apiError)
}
