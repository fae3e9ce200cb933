// Package clients holds the HTTP collaborators the pipeline drives: the
// local language model used for decomposition and feedback, and the remote
// sound-generation API.
package clients

import (
	"net/http"
	"time"
)

type HTTP struct{ c *http.Client }

func NewHTTP() *HTTP { return &HTTP{c: &http.Client{Timeout: 60 * time.Second}} }
