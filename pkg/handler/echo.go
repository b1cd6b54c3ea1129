package handler

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// echoFile records one uploaded part; the bytes themselves are drained,
// never persisted.
type echoFile struct {
	FieldName string `json:"field_name"`
	Filename  string `json:"filename"`
}

// echo consumes a POST body under the configured cap and mirrors it back
// as structured JSON, dispatching on the Content-Type header.
func (h *Handler) echo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.BodyLimit)

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}

	reply := map[string]interface{}{
		"path":         r.URL.Path,
		"content_type": contentType,
	}

	switch {
	case mediaType == "application/json":
		body, err := io.ReadAll(r.Body)
		if h.failBody(w, r, err) {
			return
		}
		var value interface{}
		if json.Unmarshal(body, &value) == nil {
			reply["json_data"] = value
		} else {
			reply["text_data"] = lossyUTF8(body)
		}

	case mediaType == "application/x-www-form-urlencoded":
		body, err := io.ReadAll(r.Body)
		if h.failBody(w, r, err) {
			return
		}
		values, _ := url.ParseQuery(string(body))
		reply["form_data"] = formObject(values)

	case mediaType == "multipart/form-data":
		boundary := params["boundary"]
		if boundary == "" {
			h.sendError(w, r, http.StatusBadRequest)
			return
		}
		files, form, err := h.drainMultipart(multipart.NewReader(r.Body, boundary))
		if err != nil {
			if isTooLarge(err) {
				h.sendError(w, r, http.StatusRequestEntityTooLarge)
			} else {
				h.sendError(w, r, http.StatusBadRequest)
			}
			return
		}
		reply["form_data"] = form
		if len(files) > 0 {
			reply["files"] = files
		}

	case strings.HasPrefix(mediaType, "text/"):
		body, err := io.ReadAll(r.Body)
		if h.failBody(w, r, err) {
			return
		}
		reply["text_data"] = lossyUTF8(body)

	default:
		_, err := io.Copy(io.Discard, r.Body)
		if h.failBody(w, r, err) {
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		h.log.Error("encode echo response: %v", err)
	}
}

// drainMultipart streams every part. File parts contribute only their
// metadata; value parts land in the form object with duplicate keys
// becoming arrays in insertion order.
func (h *Handler) drainMultipart(mr *multipart.Reader) ([]echoFile, map[string]interface{}, error) {
	var files []echoFile
	form := map[string]interface{}{}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return files, form, nil
		}
		if err != nil {
			return nil, nil, err
		}

		if part.FileName() != "" {
			if _, err := io.Copy(io.Discard, part); err != nil {
				return nil, nil, err
			}
			files = append(files, echoFile{
				FieldName: part.FormName(),
				Filename:  part.FileName(),
			})
			continue
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return nil, nil, err
		}
		addFormValue(form, part.FormName(), lossyUTF8(data))
	}
}

// formObject renders url.Values as string-or-array members.
func formObject(values url.Values) map[string]interface{} {
	form := map[string]interface{}{}
	for key, vals := range values {
		for _, v := range vals {
			addFormValue(form, key, v)
		}
	}
	return form
}

func addFormValue(form map[string]interface{}, key, value string) {
	switch existing := form[key].(type) {
	case nil:
		form[key] = value
	case string:
		form[key] = []string{existing, value}
	case []string:
		form[key] = append(existing, value)
	}
}

// failBody converts body-read failures into responses: 413 when the cap
// was exceeded, 400 otherwise. It reports whether the request is done.
func (h *Handler) failBody(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return false
	}
	if isTooLarge(err) {
		h.sendError(w, r, http.StatusRequestEntityTooLarge)
		return true
	}
	h.sendError(w, r, http.StatusBadRequest)
	return true
}

func isTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return true
	}
	// multipart wraps the reader error in its own message.
	return err != nil && strings.Contains(err.Error(), "request body too large")
}

func lossyUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}
