package web

import (
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/siftly/siftly/internal/conversation"
	"github.com/siftly/siftly/internal/sms"
)

// maxWebhookBody bounds the form payload accepted on POST /sms.
const maxWebhookBody = 64 << 10

// HandleSMS handles POST /sms, the Twilio inbound message webhook. It always
// answers 200 with TwiML; malformed requests get an empty <Response>.
func (h *Handlers) HandleSMS(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	if err := r.ParseForm(); err != nil {
		log.Printf("webhook[%s]: invalid form: %v", reqID, err)
		writeTwiML(w, reqID, "")
		return
	}

	in := conversation.Inbound{
		From: r.PostForm.Get("From"),
		Body: r.PostForm.Get("Body"),
	}
	log.Printf("webhook[%s]: inbound from %q (%d chars)", reqID, in.From, len(in.Body))

	reply := h.router.Handle(r.Context(), in)
	writeTwiML(w, reqID, reply.Text)
}

func writeTwiML(w http.ResponseWriter, reqID, text string) {
	doc, err := sms.RenderReply(text)
	if err != nil {
		log.Printf("webhook[%s]: render reply: %v", reqID, err)
		doc = sms.EmptyReply
	}
	w.Header().Set("Content-Type", sms.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func logRequestError(r *http.Request, err error) {
	log.Printf("web: %s %s: %v", r.Method, r.URL.Path, err)
}
