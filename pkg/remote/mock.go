package remote

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/Jeffail/gabs"

	rpcerr "github.com/bifrostrpc/bifrost/pkg/errors"
	"github.com/bifrostrpc/bifrost/pkg/rpc"
)

// MockDispatcher answers each method with a canned outcome, and
// remembers the calls it was given.
type MockDispatcher struct {
	// Answers holds the outcome for each method. A method with no
	// answer is Broken.
	Answers map[string]rpc.Outcome
	// Policy is applied to the answers, as a real client would.
	Policy rpc.Policy

	ParamsTest func(method string, params rpc.Params) error

	mu    sync.Mutex
	calls []rpc.Call
}

var _ rpc.Dispatcher = &MockDispatcher{}

func (m *MockDispatcher) Dispatch(ctx context.Context, method string, params rpc.Params, conv rpc.Converter) (rpc.Outcome, error) {
	call, err := rpc.NewCall(method, params)
	if err != nil {
		return m.apply(rpc.NewFailure(rpc.Broken, err.Error()))
	}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if m.ParamsTest != nil {
		if err := m.ParamsTest(method, params); err != nil {
			return m.apply(rpc.NewFailure(rpc.Broken, err.Error()))
		}
	}
	answer, ok := m.Answers[method]
	if !ok {
		return m.apply(rpc.NewFailure(rpc.Broken, "404 Not Found: no such method "+method))
	}
	if answer.OK() && conv != nil {
		// run the converter over the answer, so a mock can't hand back
		// something the real client would have rejected
		body, err := gabs.Consume(answer.Result)
		if err != nil {
			return m.apply(rpc.NewFailure(rpc.Broken, err.Error()))
		}
		result, err := conv(body)
		if err != nil {
			return m.apply(rpc.NewFailure(rpc.Broken, fmt.Sprintf("Response data from %s was invalid: %s", method, err)))
		}
		answer = rpc.NewSuccess(result)
	}
	return m.apply(answer)
}

func (m *MockDispatcher) apply(out rpc.Outcome) (rpc.Outcome, error) {
	if m.Policy == rpc.Raise && !out.OK() {
		return rpc.Outcome{}, out.Err()
	}
	return out, nil
}

// Calls returns the calls dispatched so far.
func (m *MockDispatcher) Calls() []rpc.Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rpc.Call(nil), m.calls...)
}

// -- Battery of tests for an rpc.Dispatcher wrapper. Since these
// only decorate the dispatcher, we expect params and outcomes to be
// preserved, under either policy.

func DispatcherTestBattery(t *testing.T, wrap func(mock rpc.Dispatcher) rpc.Dispatcher) {
	// set up
	params := rpc.Params{{Name: "input_", Value: "abc"}, {Name: "count", Value: 2.0}}
	checkParams := func(method string, got rpc.Params) error {
		if method == "get_reversed" && !reflect.DeepEqual(params, got) {
			return errors.New("expected != actual")
		}
		return nil
	}

	answers := map[string]rpc.Outcome{
		"get_reversed": rpc.NewSuccess("cba"),
		"get_pets":     rpc.NewSuccess([]interface{}{map[string]interface{}{"name": "Rex"}}),
		"ping":         rpc.NewFailure(rpc.Outage, "NetworkError when attempting to fetch resource."),
		"whoami":       rpc.NewFailure(rpc.Unauthorized, "HTTP 401 Unauthorized: Not logged in"),
		"get_broken":   rpc.NewFailure(rpc.Broken, "500 Internal Server Error: boom"),
	}
	mock := &MockDispatcher{
		Answers:    answers,
		ParamsTest: checkParams,
	}

	ctx := context.Background()

	// OK, here we go
	client := wrap(mock)

	for method, want := range answers {
		p := rpc.Params(nil)
		if method == "get_reversed" {
			p = params
		}
		got, err := client.Dispatch(ctx, method, p, nil)
		if err != nil {
			t.Errorf("%s: expected no error under Return, got %v", method, err)
		}
		if !reflect.DeepEqual(want, got) {
			t.Errorf("%s: expected:\n%#v\ngot:\n%#v", method, want, got)
		}
	}

	var pets []struct {
		Name string `json:"name"`
	}
	got, err := client.Dispatch(ctx, "get_pets", nil, rpc.Decode(&pets))
	if err != nil {
		t.Error(err)
	}
	if !got.OK() || len(pets) != 1 || pets[0].Name != "Rex" {
		t.Errorf("expected one pet called Rex, got %#v", got)
	}

	mock.Policy = rpc.Raise
	for method, want := range answers {
		got, err := client.Dispatch(ctx, method, params, nil)
		if want.OK() {
			if err != nil {
				t.Errorf("%s: expected no error, got %v", method, err)
			}
			continue
		}
		var rerr *rpcerr.Error
		if !errors.As(err, &rerr) {
			t.Errorf("%s: expected a raised error, got %v", method, err)
			continue
		}
		if string(rerr.Type) != string(want.Kind) || rerr.Error() != want.Message {
			t.Errorf("%s: expected %s(%s), got %s(%s)", method, want.Kind, want.Message, rerr.Type, rerr.Error())
		}
		if !reflect.DeepEqual(rpc.Outcome{}, got) {
			t.Errorf("%s: expected zero outcome alongside error, got %#v", method, got)
		}
	}

	if n := len(mock.Calls()); n != 2*len(answers)+1 {
		t.Errorf("expected %d calls, got %d", 2*len(answers)+1, n)
	}
}
