package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(h *Handler, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeEcho(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code)
	var reply map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reply))
	return reply
}

func TestEchoJSONRoundTrip(t *testing.T) {
	h, _ := newSite(t, "", map[string]string{"index.html": "hi"})

	body := `{"user":{"name":"John"},"data":{"active":true,"items":[1,2,3]}}`
	reply := decodeEcho(t, post(h, "/api/save", "application/json", body))

	assert.Equal(t, "/api/save", reply["path"])
	assert.Equal(t, "application/json", reply["content_type"])

	var want interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &want))
	assert.Equal(t, want, reply["json_data"])
}

func TestEchoInvalidJSONDegradesToText(t *testing.T) {
	h, _ := newSite(t, "", map[string]string{"index.html": "hi"})

	reply := decodeEcho(t, post(h, "/api", "application/json", "{not json"))

	assert.Nil(t, reply["json_data"])
	assert.Equal(t, "{not json", reply["text_data"])
}

func TestEchoFormURLEncoded(t *testing.T) {
	h, _ := newSite(t, "", map[string]string{"index.html": "hi"})

	reply := decodeEcho(t, post(h, "/form",
		"application/x-www-form-urlencoded", "name=test&value=42&active=true"))

	form, ok := reply["form_data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "test", form["name"])
	assert.Equal(t, "42", form["value"])
	assert.Equal(t, "true", form["active"])
}

func TestEchoFormDuplicateKeysBecomeArray(t *testing.T) {
	h, _ := newSite(t, "", map[string]string{"index.html": "hi"})

	reply := decodeEcho(t, post(h, "/form",
		"application/x-www-form-urlencoded", "tag=a&tag=b&tag=c"))

	form := reply["form_data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"a", "b", "c"}, form["tag"])
}

func TestEchoMultipart(t *testing.T) {
	h, _ := newSite(t, "", map[string]string{"index.html": "hi"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("field", "value1"))
	fw, err := mw.CreateFormFile("file", "x.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("file bytes that must not be persisted"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	reply := decodeEcho(t, rr)

	form := reply["form_data"].(map[string]interface{})
	assert.Equal(t, "value1", form["field"])

	files, ok := reply["files"].([]interface{})
	require.True(t, ok)
	require.Len(t, files, 1)
	assert.Equal(t, map[string]interface{}{
		"field_name": "file",
		"filename":   "x.txt",
	}, files[0])

	// Upload bytes are drained and discarded; nothing lands in the root.
	entries, err := os.ReadDir(h.cfg.Public)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, "x.txt", entry.Name())
	}
}

func TestEchoMultipartMissingBoundary(t *testing.T) {
	h, _ := newSite(t, "", map[string]string{"index.html": "hi"})

	rr := post(h, "/upload", "multipart/form-data", "not multipart")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEchoMultipartMalformed(t *testing.T) {
	h, _ := newSite(t, "", map[string]string{"index.html": "hi"})

	rr := post(h, "/upload",
		"multipart/form-data; boundary=xyz", "--xyz\r\ngarbage without headers")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEchoTextPlain(t *testing.T) {
	h, _ := newSite(t, "", map[string]string{"index.html": "hi"})

	reply := decodeEcho(t, post(h, "/note", "text/plain; charset=utf-8", "hello world"))
	assert.Equal(t, "hello world", reply["text_data"])
}

func TestEchoTextLossyUTF8(t *testing.T) {
	h, _ := newSite(t, "", map[string]string{"index.html": "hi"})

	reply := decodeEcho(t, post(h, "/note", "text/plain", "ok\xff\xfeok"))
	text := reply["text_data"].(string)
	assert.Contains(t, text, "ok")
	assert.True(t, strings.Contains(text, "�"))
}

func TestEchoUnknownContentTypeDiscardsBody(t *testing.T) {
	h, _ := newSite(t, "", map[string]string{"index.html": "hi"})

	reply := decodeEcho(t, post(h, "/blob", "application/octet-stream", "\x01\x02\x03"))

	assert.Equal(t, "application/octet-stream", reply["content_type"])
	assert.Nil(t, reply["json_data"])
	assert.Nil(t, reply["text_data"])
	assert.Nil(t, reply["form_data"])
}

func TestEchoMissingContentType(t *testing.T) {
	h, _ := newSite(t, "", map[string]string{"index.html": "hi"})

	reply := decodeEcho(t, post(h, "/blob", "", "payload"))
	assert.Equal(t, "application/octet-stream", reply["content_type"])
}

func TestEchoBodyOverLimitIs413(t *testing.T) {
	h, _ := newSite(t, "", map[string]string{"index.html": "hi"})
	h.cfg.BodyLimit = 64

	big := strings.Repeat("x", 256)
	for _, ct := range []string{"application/json", "text/plain", "application/octet-stream"} {
		rr := post(h, "/big", ct, big)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code, ct)
	}
}
