package http

import (
	"net/http"
	"sort"

	"github.com/golang/gddo/httputil/header"
)

// negotiateContentType picks a content type from the request's Accept
// header, out of the available types given in order of preference.
// Higher quality (`q`) wins; ties go to the earlier preference. No
// Accept header at all means the first preference; an Accept header
// that names none of the available types means "".
func negotiateContentType(r *http.Request, orderedPref []string) string {
	specs := header.ParseAccept(r.Header, "Accept")
	if len(specs) == 0 {
		return orderedPref[0]
	}

	var preferred []header.AcceptSpec
	for _, spec := range specs {
		if indexOf(orderedPref, spec.Value) < len(orderedPref) {
			preferred = append(preferred, spec)
		}
	}
	if len(preferred) == 0 {
		return ""
	}
	sort.SliceStable(preferred, func(i, j int) bool {
		if preferred[i].Q == preferred[j].Q {
			return indexOf(orderedPref, preferred[i].Value) < indexOf(orderedPref, preferred[j].Value)
		}
		return preferred[i].Q > preferred[j].Q
	})
	return preferred[0].Value
}

// indexOf returns len(ss) when search is absent, so that missing
// entries sort after present ones.
func indexOf(ss []string, search string) int {
	for i, s := range ss {
		if s == search {
			return i
		}
	}
	return len(ss)
}
