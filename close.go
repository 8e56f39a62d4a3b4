package retrieval

// Close drains in-flight ingestion jobs, then releases the capability
// clients. Jobs submitted before Close finish and are recorded; later
// submissions fail with ErrClosed. Close is idempotent.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		pipelineErr := s.pipeline.Close()
		s.watchers.Wait()
		s.closeErr = firstErr(
			pipelineErr,
			s.embedder.Close(),
			s.synthesizer.Close(),
		)
	})
	return s.closeErr
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
