package repository

// TraceEvent captures one round trip to Elasticsearch: the operation that
// issued it, the request path, and the raw request and response bodies.
type TraceEvent struct {
	Operation string
	URL       string
	Request   string
	Response  string
}

// TraceFunc observes store round trips. It is called synchronously on the
// operation's goroutine and must not block for long.
type TraceFunc func(TraceEvent)

// SetTrace attaches an observer for every Elasticsearch call the store
// makes. Passing nil detaches it. The observer is purely diagnostic: it
// cannot alter results, and a panic inside it never reaches the caller.
func (s *UserStore) SetTrace(fn TraceFunc) {
	if fn == nil {
		s.trace.Store(nil)
		return
	}
	s.trace.Store(&fn)
}

func (s *UserStore) emitTrace(operation, url string, request, response []byte) {
	fn := s.trace.Load()
	if fn == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	(*fn)(TraceEvent{
		Operation: operation,
		URL:       url,
		Request:   string(request),
		Response:  string(response),
	})
}
