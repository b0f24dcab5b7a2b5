package viacep

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
)

func TestLookupMapsFields(t *testing.T) {
	respBody := `{"cep":"56000-000","logradouro":"Rua Central","complemento":"","bairro":"Centro","localidade":"Salgueiro","uf":"PE"}`

	var capturedURL string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client := NewClient(WithBaseURL("http://cep.test/"), WithHTTPClient(&http.Client{Transport: rt}))
	addr, err := client.Lookup(context.Background(), "56000000")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if capturedURL != "http://cep.test/ws/56000000/json/" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if addr.Street != "Rua Central" || addr.Neighborhood != "Centro" || addr.City != "Salgueiro" || addr.State != "PE" {
		t.Fatalf("unexpected address %+v", addr)
	}
}

func TestLookupNotFound(t *testing.T) {
	for _, body := range []string{`{"erro":true}`, `{"erro":"true"}`} {
		rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}, nil
		})
		client := NewClient(WithBaseURL("http://cep.test"), WithHTTPClient(&http.Client{Transport: rt}))

		_, err := client.Lookup(context.Background(), "99999999")
		if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			t.Fatalf("expected not found for %s, got %v", body, err)
		}
	}
}

func TestLookupRejectsShortCEP(t *testing.T) {
	client := NewClient(WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})}))

	if _, err := client.Lookup(context.Background(), "1234"); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
