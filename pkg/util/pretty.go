package util

import (
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tidwall/pretty"
)

// PrettyPrint writes an indented JSON rendition of val
func PrettyPrint(w io.Writer, val interface{}) error {
	buf, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(val)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value")
	}

	_, err = w.Write(pretty.Pretty(buf))

	return err
}
