package descriptor

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// DefaultJSTimeout bounds evaluation of module.config.js
const DefaultJSTimeout = 2 * time.Second

// Parser converts descriptor files to Descriptors
type Parser struct {
	jsTimeout time.Duration
}

// NewParser creates a parser with the default JS timeout
func NewParser() *Parser {
	return &Parser{jsTimeout: DefaultJSTimeout}
}

// NewParserWithTimeout creates a parser with a custom JS evaluation timeout
func NewParserWithTimeout(timeout time.Duration) *Parser {
	if timeout <= 0 {
		timeout = DefaultJSTimeout
	}
	return &Parser{jsTimeout: timeout}
}

// Locate picks the descriptor file among a module's top-level file names.
// It returns "" when there is none and a parse error when there are several.
func Locate(names []string) (string, error) {
	var found []string
	for _, name := range names {
		if IsDescriptorFile(name) {
			found = append(found, name)
		}
	}
	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return found[0], nil
	default:
		sort.Strings(found)
		return "", types.NewError(types.KindParseError, "", "multiple descriptor files: %v", found)
	}
}

// ParseFiles locates and parses the descriptor inside a module file set
func (p *Parser) ParseFiles(ctx context.Context, files map[string][]byte) (types.Descriptor, string, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}

	name, err := Locate(names)
	if err != nil {
		return types.Descriptor{}, "", err
	}
	if name == "" {
		return types.Descriptor{}, "", types.NewError(types.KindParseError, "", "no descriptor file found (expected one of %v)", FileNames())
	}

	desc, err := p.Parse(ctx, name, files[name])
	return desc, name, err
}

// Parse decodes one descriptor file and checks required fields
func (p *Parser) Parse(ctx context.Context, name string, content []byte) (types.Descriptor, error) {
	format, ok := FormatOf(name)
	if !ok {
		return types.Descriptor{}, types.NewError(types.KindParseError, "", "unsupported descriptor file %q", name)
	}

	var (
		desc types.Descriptor
		err  error
	)
	switch format {
	case FormatJSON:
		err = sonic.Unmarshal(content, &desc)
	case FormatYAML:
		err = yaml.Unmarshal(content, &desc)
	case FormatTOML:
		err = toml.NewDecoder(bytes.NewReader(content)).Decode(&desc)
	case FormatJS:
		desc, err = p.evalJS(ctx, name, content)
	}
	if err != nil {
		if _, typed := types.AsError(err); typed {
			return types.Descriptor{}, err
		}
		return types.Descriptor{}, types.WrapError(types.KindParseError, "", err, "failed to parse %s", name)
	}

	desc.Format = string(format)
	if err := checkRequired(&desc, name); err != nil {
		return types.Descriptor{}, err
	}
	return desc, nil
}

func checkRequired(desc *types.Descriptor, name string) error {
	var missing []string
	if desc.ID == "" {
		missing = append(missing, "id")
	}
	if desc.Name == "" {
		missing = append(missing, "name")
	}
	if desc.Version == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		return types.NewError(types.KindParseError, desc.ID, "%s: missing required field(s) %v", name, missing)
	}
	return nil
}
