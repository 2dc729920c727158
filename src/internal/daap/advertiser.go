package daap

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/pkg/errors"
)

// serviceType is the DNS-SD service type DAAP clients browse for
const serviceType = "_daap._tcp"

// Registration is an advertised mDNS record that can be withdrawn
type Registration interface {
	Unregister() error
}

// Registrar is the mDNS primitive the advertiser drives. The transport
// itself is external; a collision observed for the advertised name is
// delivered through the collision function passed at registration time
type Registrar interface {
	Register(name string, port int, txt []string, collision func(name string)) (Registration, error)
}

// Advertiser owns the lifecycle of the advertised _daap._tcp record.
// Register and Unregister serialize on its lock; registering replaces any
// prior record
type Advertiser struct {
	mu         sync.Mutex
	registrar  Registrar
	current    Registration
	collisions chan string
}

// NewAdvertiser creates an advertiser on top of a registrar
func NewAdvertiser(registrar Registrar) *Advertiser {
	return &Advertiser{
		registrar:  registrar,
		collisions: make(chan string, 1),
	}
}

// Register advertises the service under name at port. The TXT record carries
// the DAAP discovery keys; a previously advertised record is withdrawn first
func (me *Advertiser) Register(name string, port int, password bool, machineID string) (err error) {
	me.mu.Lock()
	defer me.mu.Unlock()

	if me.current != nil {
		// disposal errors are swallowed
		_ = me.current.Unregister()
		me.current = nil
	}

	txt := []string{
		"txtvers=1",
		fmt.Sprintf("Password=%t", password),
		"Machine Name=" + name,
	}
	if machineID != "" {
		txt = append(txt, "Machine ID="+machineID)
	}

	me.current, err = me.registrar.Register(name, port, txt, me.collide)
	if err != nil {
		err = errors.Wrapf(err, "cannot register service '%s'", name)
		return
	}
	log.Tracef("advertising '%s' on port %d", name, port)
	return
}

// Unregister withdraws the advertised record. Disposal errors are swallowed
func (me *Advertiser) Unregister() {
	me.mu.Lock()
	defer me.mu.Unlock()
	if me.current != nil {
		_ = me.current.Unregister()
		me.current = nil
		log.Trace("service unregistered")
	}
}

// Collisions surfaces name collisions. The owner picks a new name and
// re-registers; RenameOnCollision derives the conventional candidate
func (me *Advertiser) Collisions() <-chan string {
	return me.collisions
}

// collide is handed to the registrar as the collision callback
func (me *Advertiser) collide(name string) {
	select {
	case me.collisions <- name:
	default:
		// a pending collision for the same record is still unhandled
	}
}

// reRenamed matches a name that already carries a collision suffix
var reRenamed = regexp.MustCompile(`^(.*) \((\d+)\)$`)

// RenameOnCollision returns the next name to try after a collision: a
// numeric suffix is appended or incremented ("Name" -> "Name (2)" ->
// "Name (3)")
func RenameOnCollision(name string) string {
	if m := reRenamed.FindStringSubmatch(name); m != nil {
		n, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%s (%d)", m[1], n+1)
	}
	return name + " (2)"
}

// zeroconfRegistrar advertises via multicast DNS using the zeroconf library.
// The library performs probing and conflict handling internally, so the
// collision callback never fires on this backend
type zeroconfRegistrar struct{}

func newZeroconfRegistrar() Registrar { return zeroconfRegistrar{} }

type zeroconfRegistration struct {
	srv *zeroconf.Server
}

func (me zeroconfRegistration) Unregister() error {
	me.srv.Shutdown()
	return nil
}

func (me zeroconfRegistrar) Register(name string, port int, txt []string, collision func(string)) (Registration, error) {
	srv, err := zeroconf.Register(name, serviceType, "local.", port, txt, nil)
	if err != nil {
		return nil, err
	}
	return zeroconfRegistration{srv: srv}, nil
}
