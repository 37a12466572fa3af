package flyapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gorilla/schema"
)

// Codec encodes request bodies and decodes response data.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// DefaultCodec is the JSON codec used unless WithCodec overrides it. It
// follows encoding/json semantics.
var DefaultCodec Codec = sonic.ConfigStd

var paramsEncoder = schema.NewEncoder()

func init() {
	paramsEncoder.SetAliasTag("url")
}

// Decode unmarshals hook data into T using DefaultCodec.
func Decode[T any](data json.RawMessage) (T, error) {
	var out T
	if len(data) == 0 {
		return out, nil
	}
	if err := DefaultCodec.Unmarshal(data, &out); err != nil {
		return out, &ClientError{Type: ErrorTypeEncoding, Message: "failed to decode response", Cause: err}
	}
	return out, nil
}

// encodeBody turns a request body into a reader. nil means no body; byte
// slices, strings and readers are sent verbatim.
func encodeBody(codec Codec, body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	case io.Reader:
		return b, nil
	}
	data, err := codec.Marshal(body)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeEncoding, Message: "failed to encode request body", Cause: err}
	}
	return bytes.NewReader(data), nil
}

// encodeParams converts GET parameters into a query string. Structs are
// encoded with their `url` tags.
func encodeParams(params any) (url.Values, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return p, nil
	case map[string][]string:
		return url.Values(p), nil
	case map[string]string:
		values := make(url.Values, len(p))
		for k, v := range p {
			values.Set(k, v)
		}
		return values, nil
	case map[string]any:
		values := make(url.Values, len(p))
		for k, v := range p {
			values.Set(k, fmt.Sprint(v))
		}
		return values, nil
	}

	rv := reflect.ValueOf(params)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, &ClientError{Type: ErrorTypeEncoding, Message: fmt.Sprintf("unsupported params type %T", params)}
	}
	values := make(url.Values)
	if err := paramsEncoder.Encode(rv.Interface(), values); err != nil {
		return nil, &ClientError{Type: ErrorTypeEncoding, Message: "failed to encode query params", Cause: err}
	}
	return values, nil
}
