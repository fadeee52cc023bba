package hostapd

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
)

var (
	reConnected    = regexp.MustCompile(`^(?:(\S+): )?AP-STA-CONNECTED ([0-9a-fA-F:]{17})`)
	reDisconnected = regexp.MustCompile(`^(?:(\S+): )?AP-STA-DISCONNECTED ([0-9a-fA-F:]{17})`)
	reAssociated   = regexp.MustCompile(`STA ([0-9a-fA-F:]{17}) IEEE 802\.11: associated \(aid (\d+)\)`)
)

// EventParser turns hostapd stdout lines into station events. hostapd
// reports the association id on a separate line before AP-STA-CONNECTED,
// so the parser remembers it per station.
type EventParser struct {
	mu   sync.Mutex
	aids map[domain.HardwareAddress]int
	now  func() time.Time
}

// NewEventParser creates a parser.
func NewEventParser() *EventParser {
	return &EventParser{
		aids: make(map[domain.HardwareAddress]int),
		now:  time.Now,
	}
}

// Parse returns the station event a line announces, if any.
func (p *EventParser) Parse(line string) (domain.StationEvent, bool) {
	line = strings.TrimSpace(line)

	if m := reAssociated.FindStringSubmatch(line); m != nil {
		addr, err := domain.ParseHardwareAddress(m[1])
		if err != nil {
			return domain.StationEvent{}, false
		}
		aid, _ := strconv.Atoi(m[2])
		p.mu.Lock()
		p.aids[addr] = aid
		p.mu.Unlock()
		return domain.StationEvent{}, false
	}

	evType := domain.StationJoined
	m := reConnected.FindStringSubmatch(line)
	if m == nil {
		evType = domain.StationLeft
		m = reDisconnected.FindStringSubmatch(line)
	}
	if m == nil {
		return domain.StationEvent{}, false
	}

	addr, err := domain.ParseHardwareAddress(m[2])
	if err != nil {
		return domain.StationEvent{}, false
	}

	p.mu.Lock()
	aid := p.aids[addr]
	if evType == domain.StationLeft {
		delete(p.aids, addr)
	}
	p.mu.Unlock()

	return domain.StationEvent{
		Type:      evType,
		Address:   addr,
		AID:       aid,
		Interface: m[1],
		Timestamp: p.now(),
	}, true
}
