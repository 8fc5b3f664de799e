// Command healthcheck calls the local API and exits nonzero when it is
// unreachable. It exists so a scratch container can declare a HEALTHCHECK
// without shipping curl.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"
)

func main() {
	os.Exit(check())
}

func check() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "http://" + loopbackAddr(os.Getenv("DEVWATCH_LISTEN_ADDR")) + "/api/v1/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 1
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 1
	}

	return 0
}

// loopbackAddr maps the server's listen address onto one the check can dial
// from inside the same container: a 0.0.0.0 bind still answers on loopback.
func loopbackAddr(raw string) string {
	if raw == "" {
		return "127.0.0.1:8080"
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return "127.0.0.1:8080"
	}

	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
