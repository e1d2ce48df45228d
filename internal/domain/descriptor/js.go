package descriptor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
)

// evalJS runs a module.config.js file in a fresh VM and decodes module.exports.
// The VM has no host bindings; only the CommonJS module/exports pair is provided.
func (p *Parser) evalJS(ctx context.Context, name string, content []byte) (types.Descriptor, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)

	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return types.Descriptor{}, fmt.Errorf("failed to set up module object: %w", err)
	}
	vm.Set("module", module)
	vm.Set("exports", exports)
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())

	timer := time.NewTimer(p.jsTimeout)
	defer timer.Stop()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-timer.C:
			vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	if _, err := vm.RunScript(name, string(content)); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return types.Descriptor{}, types.NewError(types.KindParseError, "", "%s: %v", name, interrupted.Value())
		}
		return types.Descriptor{}, fmt.Errorf("script error: %w", err)
	}

	val, err := vm.RunString("JSON.stringify(module.exports)")
	if err != nil {
		return types.Descriptor{}, fmt.Errorf("module.exports is not serialisable: %w", err)
	}
	if goja.IsUndefined(val) || goja.IsNull(val) {
		return types.Descriptor{}, fmt.Errorf("module.exports is empty")
	}

	var desc types.Descriptor
	if err := sonic.UnmarshalString(val.String(), &desc); err != nil {
		return types.Descriptor{}, fmt.Errorf("module.exports has the wrong shape: %w", err)
	}
	return desc, nil
}
