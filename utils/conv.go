package utils

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/text/transform"

	"github.com/mogaika/assetpipe/config"
)

// BytesToString decodes a zero terminated or zero padded buffer through the
// configured charmap.
func BytesToString(bs []byte) (string, error) {
	s, _, err := transform.Bytes(config.GetEncoding().NewDecoder(), bs[:BytesStringLength(bs)])
	if err != nil {
		return "", errors.Wrapf(err, "Can't decode string")
	}
	return string(s), nil
}

func BytesStringLength(bs []byte) int {
	if l := bytes.IndexByte(bs, 0); l == -1 {
		return len(bs)
	} else {
		return l
	}
}

// StringToBytesBuffer encodes s and pads it with zeroes to bufSize.
func StringToBytesBuffer(s string, bufSize int, nilTerminate bool) ([]byte, error) {
	bs, err := StringToBytes(s, nilTerminate)
	if err != nil {
		return make([]byte, bufSize), err
	}
	if len(bs) > bufSize {
		return make([]byte, bufSize), errors.Errorf("String %q does not fit in %d bytes", s, bufSize)
	}
	r := make([]byte, bufSize)
	copy(r, bs)
	return r, nil
}

func StringToBytes(s string, nilTerminate bool) ([]byte, error) {
	bs, _, err := transform.Bytes(config.GetEncoding().NewEncoder(), []byte(s))
	if err != nil {
		return nil, errors.Wrapf(err, "Can't encode string %q with %v", s, config.GetEncoding())
	}
	if nilTerminate {
		bs = append(bs, 0)
	}
	return bs, nil
}
