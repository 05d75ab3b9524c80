package forms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zachkp/portfolio/internal/relay"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contactURL = "https://relay.example/f/contact"

func fillContact(t *testing.T, f *ContactForm, name, email, message string) {
	t.Helper()
	require.NoError(t, f.UpdateField(FieldName, name))
	require.NoError(t, f.UpdateField(FieldEmail, email))
	require.NoError(t, f.UpdateField(FieldMessage, message))
}

func TestContactSubmitSendsLastWrittenValues(t *testing.T) {
	sender := &fakeSender{}
	f := NewContactForm(sender, contactURL, WithClock(&manualClock{}))

	require.NoError(t, f.UpdateField(FieldName, "J"))
	require.NoError(t, f.UpdateField(FieldName, "Ja"))
	require.NoError(t, f.UpdateField(FieldEmail, "old@x.com"))
	require.NoError(t, f.UpdateField(FieldName, "Jane"))
	require.NoError(t, f.UpdateField(FieldMessage, "Hi"))
	require.NoError(t, f.UpdateField(FieldEmail, "jane@x.com"))
	require.NoError(t, f.UpdateField(FieldMessage, "Hello"))

	require.NoError(t, f.Submit(context.Background()))

	want := map[string]string{"name": "Jane", "email": "jane@x.com", "message": "Hello"}
	require.Len(t, sender.json, 1)
	if diff := cmp.Diff(want, sender.json[0]); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{contactURL}, sender.endpoints)
}

func TestContactUpdateFieldRejectsUnknownName(t *testing.T) {
	f := NewContactForm(&fakeSender{}, contactURL)

	err := f.UpdateField("phone", "555")

	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, ContactMessage{}, f.Snapshot().Draft)
}

func TestContactSuccessResetsDraftThenGoesIdle(t *testing.T) {
	clock := &manualClock{}
	f := NewContactForm(&fakeSender{}, contactURL, WithClock(clock))
	fillContact(t, f, "Jane", "jane@x.com", "Hello")

	require.NoError(t, f.Submit(context.Background()))

	view := f.Snapshot()
	assert.Equal(t, StatusSuccess, view.Status)
	assert.False(t, view.Pending)
	assert.Equal(t, ContactMessage{Name: "", Email: "", Message: ""}, view.Draft)

	clock.Advance(DefaultContactResetAfter - time.Millisecond)
	assert.Equal(t, StatusSuccess, f.Snapshot().Status)

	clock.Advance(time.Millisecond)
	assert.Equal(t, StatusIdle, f.Snapshot().Status)
}

func TestContactRejectedKeepsDraft(t *testing.T) {
	clock := &manualClock{}
	sender := &fakeSender{err: &relay.RejectedError{Endpoint: contactURL, StatusCode: http.StatusInternalServerError}}
	f := NewContactForm(sender, contactURL, WithClock(clock))
	fillContact(t, f, "Jane", "jane@x.com", "Hello")

	err := f.Submit(context.Background())

	assert.ErrorIs(t, err, relay.ErrRejected)
	view := f.Snapshot()
	assert.Equal(t, StatusFailure, view.Status)
	assert.Equal(t, ContactMessage{Name: "Jane", Email: "jane@x.com", Message: "Hello"}, view.Draft)

	clock.Advance(DefaultContactResetAfter)
	view = f.Snapshot()
	assert.Equal(t, StatusIdle, view.Status)
	assert.Equal(t, "Jane", view.Draft.Name)
}

func TestContactTransportFailureKeepsDraft(t *testing.T) {
	sender := &fakeSender{err: &relay.TransportError{Endpoint: contactURL, Err: errors.New("dial tcp: no such host")}}
	f := NewContactForm(sender, contactURL, WithClock(&manualClock{}))
	fillContact(t, f, "Jane", "jane@x.com", "Hello")

	err := f.Submit(context.Background())

	assert.ErrorIs(t, err, relay.ErrTransport)
	view := f.Snapshot()
	assert.Equal(t, StatusFailure, view.Status)
	assert.Equal(t, "Hello", view.Draft.Message)
}

func TestSubmitWhilePendingIsNoOp(t *testing.T) {
	sender := &fakeSender{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	f := NewContactForm(sender, contactURL, WithClock(&manualClock{}))
	fillContact(t, f, "Jane", "jane@x.com", "Hello")

	done := make(chan error, 1)
	go func() { done <- f.Submit(context.Background()) }()
	<-sender.entered

	view := f.Snapshot()
	assert.True(t, view.Pending)
	assert.Equal(t, StatusPending, view.Status)

	const rapid = 10
	var wg sync.WaitGroup
	errs := make(chan error, rapid)
	for i := 0; i < rapid; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.Submit(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.ErrorIs(t, err, ErrSubmissionPending)
	}

	close(sender.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, sender.calls())
	assert.False(t, f.Snapshot().Pending)
}

func TestNewSubmitCancelsEarlierAutoClear(t *testing.T) {
	clock := &manualClock{}
	sender := &fakeSender{err: &relay.RejectedError{Endpoint: contactURL, StatusCode: http.StatusBadGateway}}
	f := NewContactForm(sender, contactURL, WithClock(clock))
	fillContact(t, f, "Jane", "jane@x.com", "Hello")

	require.Error(t, f.Submit(context.Background()))
	assert.Equal(t, 1, clock.active())

	clock.Advance(3 * time.Second)
	sender.setErr(nil)
	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, 1, clock.active(), "earlier auto-clear should be cancelled")

	// The first submit's reset would have fired here.
	clock.Advance(2 * time.Second)
	assert.Equal(t, StatusSuccess, f.Snapshot().Status)

	clock.Advance(3 * time.Second)
	assert.Equal(t, StatusIdle, f.Snapshot().Status)
}

func TestStaleAutoClearIgnoredAfterResubmit(t *testing.T) {
	f := NewContactForm(&fakeSender{}, contactURL, WithClock(&manualClock{}))
	require.NoError(t, f.Submit(context.Background()))
	staleSeq := f.m.seq

	require.NoError(t, f.Submit(context.Background()))
	f.m.clearStatus(staleSeq)

	assert.Equal(t, StatusSuccess, f.Snapshot().Status)
}

func TestWithResetAfterOverridesDefault(t *testing.T) {
	clock := &manualClock{}
	f := NewContactForm(&fakeSender{}, contactURL, WithClock(clock), WithResetAfter(time.Second))

	require.NoError(t, f.Submit(context.Background()))
	clock.Advance(time.Second)

	assert.Equal(t, StatusIdle, f.Snapshot().Status)
}

func TestCloseCancelsAutoClear(t *testing.T) {
	clock := &manualClock{}
	f := NewContactForm(&fakeSender{}, contactURL, WithClock(clock))
	require.NoError(t, f.Submit(context.Background()))

	f.Close()

	assert.Equal(t, 0, clock.active())
}

func TestContactAgainstRelayServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := NewContactForm(relay.NewWithHTTPClient(srv.Client()), srv.URL, WithClock(&manualClock{}))
	fillContact(t, f, "Jane", "jane@x.com", "Hello")

	require.NoError(t, f.Submit(context.Background()))

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, StatusSuccess, f.Snapshot().Status)
	assert.Equal(t, ContactMessage{}, f.Snapshot().Draft)
}

func TestSubmitWithAppliesFieldsAndSends(t *testing.T) {
	sender := &fakeSender{}
	f := NewContactForm(sender, contactURL, WithClock(&manualClock{}))
	require.NoError(t, f.UpdateField(FieldMessage, "typed earlier"))

	err := f.SubmitWith(context.Background(), map[string]string{FieldName: "Jane", FieldEmail: "jane@x.com"})

	require.NoError(t, err)
	require.Len(t, sender.json, 1)
	assert.Equal(t, map[string]string{"name": "Jane", "email": "jane@x.com", "message": "typed earlier"}, sender.json[0])
}

func TestSubmitWithUnknownFieldChangesNothing(t *testing.T) {
	sender := &fakeSender{}
	f := NewContactForm(sender, contactURL, WithClock(&manualClock{}))
	fillContact(t, f, "Jane", "jane@x.com", "Hello")

	err := f.SubmitWith(context.Background(), map[string]string{FieldName: "Mallory", "phone": "555"})

	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Zero(t, sender.calls())
	view := f.Snapshot()
	assert.Equal(t, StatusIdle, view.Status)
	assert.Equal(t, "Jane", view.Draft.Name)
}

func TestSubmitWithWhilePendingLeavesDraft(t *testing.T) {
	sender := &fakeSender{gate: make(chan struct{}), entered: make(chan struct{}, 1), err: relay.ErrRejected}
	f := NewContactForm(sender, contactURL, WithClock(&manualClock{}))

	done := make(chan error, 1)
	go func() {
		done <- f.SubmitWith(context.Background(), map[string]string{FieldName: "Jane", FieldMessage: "Hello"})
	}()
	<-sender.entered

	err := f.SubmitWith(context.Background(), map[string]string{FieldName: "Mallory", FieldMessage: "Other"})
	assert.ErrorIs(t, err, ErrSubmissionPending)

	close(sender.gate)
	assert.ErrorIs(t, <-done, relay.ErrRejected)
	view := f.Snapshot()
	assert.Equal(t, StatusFailure, view.Status)
	assert.Equal(t, ContactMessage{Name: "Jane", Message: "Hello"}, view.Draft)
}

func TestCloseDuringSubmitSchedulesNoAutoClear(t *testing.T) {
	clock := &manualClock{}
	sender := &fakeSender{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	f := NewContactForm(sender, contactURL, WithClock(clock))

	done := make(chan error, 1)
	go func() { done <- f.Submit(context.Background()) }()
	<-sender.entered

	f.Close()
	close(sender.gate)
	require.NoError(t, <-done)

	assert.Equal(t, StatusSuccess, f.Snapshot().Status)
	assert.Equal(t, 0, clock.active())
}
