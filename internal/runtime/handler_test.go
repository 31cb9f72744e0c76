package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/quickbuttons/internal/types"
)

type echoHandler struct{}

func (echoHandler) Type() types.ButtonType { return types.TypeShell }
func (echoHandler) Validate(p types.Params) error {
	if !p.Has("command") {
		return Invalid(types.TypeShell, "command", "is required")
	}
	return nil
}
func (echoHandler) Execute(_ context.Context, req Request) (Result, error) {
	req.Emit(req.Button.Params.String("command"))
	return Result{Output: req.Button.Params.String("command")}, nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register(echoHandler{})

	h, err := r.Resolve(types.TypeShell)
	require.NoError(t, err)
	assert.Equal(t, types.TypeShell, h.Type())

	_, err = r.Resolve(types.TypeLLM)
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Equal(t, []types.ButtonType{types.TypeShell}, r.Types())
}

func TestRegistryValidateButton(t *testing.T) {
	r := NewRegistry()
	r.Register(echoHandler{})

	ok := types.Button{Type: types.TypeShell, Params: types.Params{"command": "ls"}}
	assert.NoError(t, r.ValidateButton(ok))

	var verr *ValidationError
	missing := types.Button{Type: types.TypeShell, Params: types.Params{}}
	require.ErrorAs(t, r.ValidateButton(missing), &verr)
	assert.Equal(t, "command", verr.Field)

	nested := types.Button{Type: types.TypeShell, Params: types.Params{"command": "ls", "env": map[string]any{}}}
	require.ErrorAs(t, r.ValidateButton(nested), &verr)
	assert.Equal(t, "params", verr.Field)

	unknown := types.Button{Type: "network_speed", Params: types.Params{}}
	require.ErrorAs(t, r.ValidateButton(unknown), &verr)
	assert.Equal(t, "type", verr.Field)
}

func TestRequestEmitWithoutProgress(t *testing.T) {
	var got []string
	req := Request{Progress: func(s string) { got = append(got, s) }}
	req.Emit("")
	req.Emit("a")
	assert.Equal(t, []string{"a"}, got)
	Request{}.Emit("ignored")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{fmt.Errorf("post: %w", ErrTimeout), KindTimeout},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), KindTimeout},
		{fmt.Errorf("open: %w", os.ErrNotExist), KindNotFound},
		{fmt.Errorf("%w: 401", ErrAuthFailed), KindAuthFailed},
		{Invalid(types.TypeWebsite, "url", "bad"), KindValidation},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, KindNetwork},
		{errors.New("mystery"), KindUnclassified},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.err), "%v", c.err)
	}
}
