package http_wrappers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/BenMacKenzie/db-mlops/internal/abstractions"
	"github.com/BenMacKenzie/db-mlops/internal/executioncontext"
	"github.com/BenMacKenzie/db-mlops/internal/logging"
	"github.com/BenMacKenzie/db-mlops/internal/messages"
	"github.com/BenMacKenzie/db-mlops/pkg/api"
)

// MaxBodySize limits request bodies read through BodyAsBytes.
const MaxBodySize = 1 << 20

type ReqWrapper struct {
	Request *http.Request
	body    []byte
	read    bool
}

func NewRequestWrapper(r *http.Request) *ReqWrapper {
	return &ReqWrapper{Request: r}
}

func (r *ReqWrapper) Method() string {
	return r.Request.Method
}

func (r *ReqWrapper) URI() string {
	return r.Request.URL.RequestURI()
}

func (r *ReqWrapper) Header(key string) string {
	return r.Request.Header.Get(key)
}

func (r *ReqWrapper) SetHeader(key string, value string) {
	r.Request.Header.Set(key, value)
}

func (r *ReqWrapper) Path() string {
	return r.Request.URL.Path
}

func (r *ReqWrapper) Query(key string) []string {
	return r.Request.URL.Query()[key]
}

// BodyAsBytes reads the body once; later calls return the same bytes.
func (r *ReqWrapper) BodyAsBytes() ([]byte, error) {
	if r.read {
		return r.body, nil
	}
	r.read = true
	if r.Request.Body == nil {
		return nil, nil
	}
	defer r.Request.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Request.Body, MaxBodySize))
	if err != nil {
		return nil, err
	}
	r.body = body
	return body, nil
}

func (r *ReqWrapper) PathValue(name string) string {
	return r.Request.PathValue(name)
}

type RespWrapper struct {
	writer http.ResponseWriter
	ctx    *executioncontext.ExecutionContext
}

func NewRespWrapper(w http.ResponseWriter, ctx *executioncontext.ExecutionContext) *RespWrapper {
	return &RespWrapper{writer: w, ctx: ctx}
}

func (r *RespWrapper) SetHeader(key string, value string) {
	r.writer.Header().Set(key, value)
}

func (r *RespWrapper) DeleteHeader(key string) {
	r.writer.Header().Del(key)
}

func (r *RespWrapper) SetStatusCode(code int) {
	r.writer.WriteHeader(code)
}

func (r *RespWrapper) Write(buf []byte) (int, error) {
	return r.writer.Write(buf)
}

func (r *RespWrapper) WriteJSON(v any, code int) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		r.ErrorWithMessageCode(r.ctx.RequestID, messages.InternalServerError, "Error", err.Error())
		return
	}
	r.SetHeader("Content-Type", "application/json")
	r.SetStatusCode(code)
	_, _ = r.writer.Write(jsonBytes)
	logging.LogRequestSuccess(r.ctx, code, nil)
}

// Error renders err. Service errors keep their message code; anything else is an
// unknown error.
func (r *RespWrapper) Error(err error, requestId string) {
	var se abstractions.ServiceError
	if errors.As(err, &se) {
		r.ErrorWithMessageCode(requestId, se.MessageCode(), se.MessageParams()...)
		return
	}
	r.ErrorWithMessageCode(requestId, messages.UnknownError, "Error", err.Error())
}

func (r *RespWrapper) ErrorWithMessageCode(requestId string, messageCode *messages.MessageCode, messageParams ...any) {
	msg := messages.GetErrorMessage(messageCode, messageParams...)
	body := api.Error{
		MessageCode: messageCode.GetID(),
		Message:     msg,
		Trace:       requestId,
	}
	jsonBytes, err := json.Marshal(body)
	if err != nil {
		http.Error(r.writer, msg, messageCode.GetCode())
		return
	}
	header := r.writer.Header()
	header.Del("Content-Length")
	header.Set("Content-Type", "application/json")
	header.Set("X-Content-Type-Options", "nosniff")
	r.writer.WriteHeader(messageCode.GetCode())
	_, _ = r.writer.Write(jsonBytes)
	logging.LogRequestFailed(r.ctx, messageCode.GetCode(), msg)
}
