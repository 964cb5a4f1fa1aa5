package cache

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httputil"
)

const payloadPrefix = "---HTTP-RESPONSE---\n"

// serialize dumps resp in HTTP/1.x wire format. The body is read in full and
// resp.Body is replaced with an equivalent reader, so resp stays usable.
func serialize(resp *http.Response) ([]byte, error) {
	b, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return nil, err
	}

	return append([]byte(payloadPrefix), b...), nil
}

// deserialize builds a new response from a payload produced by serialize.
// Every call returns an independent response with its own body reader.
func deserialize(b []byte, req *http.Request) (*http.Response, error) {
	if !bytes.HasPrefix(b, []byte(payloadPrefix)) {
		return nil, fmt.Errorf("invalid payload: missing %q prefix", payloadPrefix)
	}

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b[len(payloadPrefix):])), req)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize response: %w", err)
	}

	return resp, nil
}
