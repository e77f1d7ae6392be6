package sampler

// SetUniform replaces the uniform draw so tests can steer sampling rounds.
func (s *Sampler) SetUniform(f func() float64) { s.uniform = f }
