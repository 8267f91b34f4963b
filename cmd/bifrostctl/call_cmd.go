package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bifrostrpc/bifrost/pkg/rpc"
)

type callOpts struct {
	*rootOpts
	params     []string
	paramsJSON string
	schemaFile string
	output     string
}

func newCall(parent *rootOpts) *callOpts {
	return &callOpts{rootOpts: parent}
}

func (opts *callOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call METHOD",
		Short: "Call a method and print its outcome",
		Example: makeExample(
			"bifrostctl call get_reversed --param input_=abc",
			`bifrostctl call check_pets --params '{"pets": {"basil": {"name": "Basil"}}}'`,
			"bifrostctl call get_pets --schema pets.schema.json -o yaml",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringArrayVarP(&opts.params, "param", "p", nil, "a parameter as name=value; the value is read as JSON if it parses, and as a string otherwise")
	cmd.Flags().StringVar(&opts.paramsJSON, "params", "", "all parameters as a JSON object; --param values are added after these")
	cmd.Flags().StringVar(&opts.schemaFile, "schema", "", "JSON schema file the result must conform to")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func makeExample(examples ...string) string {
	var buf strings.Builder
	for _, example := range examples {
		fmt.Fprintln(&buf, "  "+example)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func (opts *callOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errorWantedOneArg
	}
	if !validOutput(opts.output) {
		return errorInvalidOutputFormat
	}
	params, err := parseParams(opts.paramsJSON, opts.params)
	if err != nil {
		return err
	}
	conv := rpc.Converter(rpc.Identity)
	if opts.schemaFile != "" {
		schema, err := ioutil.ReadFile(opts.schemaFile)
		if err != nil {
			return errors.Wrap(err, "reading schema")
		}
		if conv, err = rpc.Schema(string(schema), nil); err != nil {
			return err
		}
	}

	out, err := opts.Dispatcher.Dispatch(context.Background(), args[0], params, conv)
	if err != nil {
		return err
	}
	if err := printOutcome(cmd.OutOrStdout(), opts.output, out); err != nil {
		return err
	}
	if !out.OK() {
		return errFailedOutcome
	}
	return nil
}

// parseParams puts together the object given with --params and the
// single values given with --param, in that order.
func parseParams(object string, pairs []string) (rpc.Params, error) {
	params := rpc.Params{}
	if object != "" {
		var fromObject rpc.Params
		if err := json.Unmarshal([]byte(object), &fromObject); err != nil {
			return nil, newUsageError("--params must be a JSON object: " + err.Error())
		}
		for _, p := range fromObject {
			params = setParam(params, p.Name, p.Value)
		}
	}
	for _, pair := range pairs {
		i := strings.Index(pair, "=")
		if i <= 0 {
			return nil, newUsageError(fmt.Sprintf("--param %q is not of the form name=value", pair))
		}
		name, raw := pair[:i], pair[i+1:]
		params = setParam(params, name, paramValue(raw))
	}
	return params, nil
}

// paramValue reads raw as a JSON value, keeping numbers exact, or
// takes it as a plain string if it isn't one.
func paramValue(raw string) interface{} {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return raw
	}
	if _, err := dec.Token(); err != io.EOF {
		return raw
	}
	return value
}

// setParam replaces the value of an existing parameter in place, so
// the order of first appearance is kept.
func setParam(params rpc.Params, name string, value interface{}) rpc.Params {
	for i := range params {
		if params[i].Name == name {
			params[i].Value = value
			return params
		}
	}
	return append(params, rpc.Param{Name: name, Value: value})
}
