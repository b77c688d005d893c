package connectivity

import (
	"context"
	"sync"
)

// AccessPoint is one scan result.
type AccessPoint struct {
	SSID   string
	BSSID  string
	Signal int // dBm, higher is stronger
}

// Driver is the link layer the monitor drives.
type Driver interface {
	// Connected reports the current link state without blocking.
	Connected() bool
	// Scan performs an active scan of nearby networks.
	Scan(ctx context.Context) ([]AccessPoint, error)
	// Join associates with ap. It returns ErrAuthRejected or ErrJoinTimeout
	// (possibly wrapped) on failure.
	Join(ctx context.Context, ap AccessPoint, password string) error
}

// SelectStrongest returns the strongest access point matching ssid. An empty
// ssid matches any network. Ties keep the first one seen.
func SelectStrongest(aps []AccessPoint, ssid string) (AccessPoint, bool) {
	var (
		best  AccessPoint
		found bool
	)
	for _, ap := range aps {
		if ssid != "" && ap.SSID != ssid {
			continue
		}
		if !found || ap.Signal > best.Signal {
			best = ap
			found = true
		}
	}
	return best, found
}

// SimDriver is a scriptable in-process link used by tests and by the "sim"
// driver setting.
type SimDriver struct {
	mu          sync.Mutex
	linked      bool
	aps         []AccessPoint
	scanErr     error
	joinResults []error
	joins       []AccessPoint
}

// NewSimDriver creates a simulated link that is initially linked or not.
func NewSimDriver(linked bool, aps ...AccessPoint) *SimDriver {
	return &SimDriver{linked: linked, aps: aps}
}

// SetLinked flips the simulated link state.
func (s *SimDriver) SetLinked(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linked = v
}

// SetAccessPoints replaces the scan results and clears any scan error.
func (s *SimDriver) SetAccessPoints(aps ...AccessPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aps = aps
	s.scanErr = nil
}

// FailScan makes subsequent scans return err.
func (s *SimDriver) FailScan(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanErr = err
}

// QueueJoinResults sets the outcome of the next joins in order; once the
// queue is empty joins succeed.
func (s *SimDriver) QueueJoinResults(results ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinResults = append(s.joinResults, results...)
}

// Joins returns the access points joined so far.
func (s *SimDriver) Joins() []AccessPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AccessPoint(nil), s.joins...)
}

func (s *SimDriver) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linked
}

func (s *SimDriver) Scan(ctx context.Context) ([]AccessPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	return append([]AccessPoint(nil), s.aps...), nil
}

func (s *SimDriver) Join(ctx context.Context, ap AccessPoint, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joins = append(s.joins, ap)
	if len(s.joinResults) > 0 {
		err := s.joinResults[0]
		s.joinResults = s.joinResults[1:]
		if err != nil {
			return err
		}
	}
	s.linked = true
	return nil
}
