package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ghodss/yaml"

	"github.com/bifrostrpc/bifrost/pkg/rpc"
)

func newTabwriter(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
}

// outcomeView is how an outcome is printed as JSON or YAML.
type outcomeView struct {
	Kind    rpc.Kind    `json:"kind"`
	Result  interface{} `json:"result,omitempty"`
	Message string      `json:"message,omitempty"`
}

func validOutput(format string) bool {
	switch format {
	case "text", "json", "yaml":
		return true
	}
	return false
}

func printOutcome(out io.Writer, format string, o rpc.Outcome) error {
	view := outcomeView{Kind: o.Kind, Result: o.Result, Message: o.Message}
	switch format {
	case "json":
		bytes, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(bytes))
	case "yaml":
		bytes, err := yaml.Marshal(view)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(bytes))
	default:
		w := newTabwriter(out)
		fmt.Fprintln(w, "KIND\tRESULT")
		if o.OK() {
			result, err := json.Marshal(o.Result)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\n", o.Kind, result)
		} else {
			fmt.Fprintf(w, "%s\t%s\n", o.Kind, o.Message)
		}
		return w.Flush()
	}
	return nil
}
