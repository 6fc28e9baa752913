package assets

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/conneroisu/templpack/internal/errors"
	"github.com/conneroisu/templpack/internal/logging"
	"github.com/conneroisu/templpack/internal/parser"
)

// DefaultFunction is the template function that declares an asset.
const DefaultFunction = "asset"

// Extractor finds asset declarations in a single template file.
//
// A declaration is a call to the configured function with one to three
// arguments: resource, type hint and group. Resource and group must be
// literals. Calls with a dynamic resource cannot be resolved before the
// template runs and are reported as parsing errors.
type Extractor struct {
	parser   parser.Parser
	function string
	handler  errors.Handler
	logger   logging.Logger
}

// NewExtractor creates an extractor. An empty function means DefaultFunction.
func NewExtractor(p parser.Parser, function string, handler errors.Handler, logger logging.Logger) *Extractor {
	if function == "" {
		function = DefaultFunction
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Extractor{
		parser:   p,
		function: function,
		handler:  handler,
		logger:   logger.WithComponent("extractor"),
	}
}

// Extract returns the declarations in path. When previous is a *FileToken
// with the same modification time as the file, it is returned unchanged and
// the file is not read.
//
// Parsing errors go to the error handler. If the handler swallows them the
// file yields no assets but is still cached, so the same failure is not
// reported again until the file changes.
func (e *Extractor) Extract(ctx context.Context, path string, previous Token) (Collection, error) {
	prev, err := fileToken(previous)
	if err != nil {
		return Collection{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Collection{}, errors.NewInvalidResourceError(path, stderrors.New("File not found"))
		}

		return Collection{}, errors.NewInvalidResourceError(path, err)
	}
	if !info.Mode().IsRegular() {
		return Collection{}, errors.NewInvalidResourceError(path, stderrors.New("File is not a regular file"))
	}

	modifiedAt := info.ModTime().UnixNano()
	if modifiedAt <= 0 {
		modifiedAt = 1
	}
	if prev != nil && prev.ModifiedAt == modifiedAt {
		return Collection{Assets: prev.Assets, Token: prev}, nil
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return Collection{}, errors.NewInvalidResourceError(path, stderrors.New("File is not readable"))
	}

	assets, err := e.declarations(ctx, source, path)
	if err != nil {
		if herr := e.handler.Handle(ctx, err); herr != nil {
			return Collection{}, herr
		}
		assets = nil
	}

	e.logger.Debug(ctx, "Extracted assets", "file", path, "assets", len(assets))

	token := &FileToken{ModifiedAt: modifiedAt, Assets: assets}

	return Collection{Assets: assets, Token: token}, nil
}

func (e *Extractor) declarations(ctx context.Context, source []byte, path string) ([]Declaration, error) {
	root, err := e.parser.Parse(source, path)
	if err != nil {
		var se *parser.SyntaxError
		if stderrors.As(err, &se) {
			return nil, errors.NewResourceParsingError(path, se.Line, "template syntax error while parsing", se)
		}

		return nil, errors.NewResourceParsingError(path, 0, "template syntax error while parsing", err)
	}

	var (
		assets  []Declaration
		walkErr error
	)
	parser.Walk(root, func(n *parser.Node) bool {
		if walkErr != nil {
			return false
		}
		if !n.IsCall(e.function) {
			return true
		}
		if err := ctx.Err(); err != nil {
			walkErr = err

			return false
		}

		d, err := e.declaration(n, path)
		if err != nil {
			walkErr = err

			return false
		}
		assets = append(assets, d)

		return false
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return assets, nil
}

func (e *Extractor) declaration(call *parser.Node, path string) (Declaration, error) {
	hint := fmt.Sprintf("File %s, line %d", path, call.Line)

	if len(call.Args) < 1 || len(call.Args) > 3 {
		return Declaration{}, errors.NewResourceParsingError(path, call.Line,
			fmt.Sprintf("Expected one to three arguments passed to function %s. %s", e.function, hint), nil)
	}

	resource := call.Args[0]
	if !resource.IsLiteral() {
		return Declaration{}, errors.NewResourceParsingError(path, call.Line,
			fmt.Sprintf("Argument passed to function %s must be text node to parse without context. %s", e.function, hint), nil)
	}

	d := Declaration{Resource: resource.Value}
	if len(call.Args) == 3 {
		group := call.Args[2]
		if !group.IsLiteral() {
			return Declaration{}, errors.NewResourceParsingError(path, call.Line,
				fmt.Sprintf("Argument passed to function %s must be text node to parse without context. %s", e.function, hint), nil)
		}
		d.Group = group.Value
	}

	return d, nil
}

func fileToken(previous Token) (*FileToken, error) {
	if previous == nil {
		return nil, nil
	}

	t, ok := previous.(*FileToken)
	if !ok {
		return nil, errors.NewInvalidContextError(fmt.Sprintf("expected file token with modified_at and assets, got %T", previous))
	}
	if t == nil {
		return nil, nil
	}
	if t.ModifiedAt <= 0 {
		return nil, errors.NewInvalidContextError("expected file token with positive modified_at")
	}

	return t, nil
}
