package metrics

/*
Labels and so on for metrics used in bifrost.
*/

const (
	LabelMethod = "method"
	// the outcome kind: success, outage, unauthorized or broken
	LabelKind = "kind"
	// for the demo service, whether the handler returned without error
	LabelSuccess = "success"
)
