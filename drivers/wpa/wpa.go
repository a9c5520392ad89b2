//go:build linux

// Package wpa drives wpa_supplicant over the system D-Bus as a wifi.Radio.
//
// Creating (or finding) the supplicant interface is "start", AddNetwork is
// "configuration", SelectNetwork followed by the State property reaching
// "completed" is "connect", and State leaving "completed" is the disconnect
// event.
package wpa

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/jonboulle/clockwork"

	"proxnode-go/errcode"
	"proxnode-go/types"
	"proxnode-go/x/logx"
)

const (
	busName       = "fi.w1.wpa_supplicant1"
	rootPath      = "/fi/w1/wpa_supplicant1"
	rootIface     = "fi.w1.wpa_supplicant1"
	ifaceIface    = "fi.w1.wpa_supplicant1.Interface"
	propsIface    = "org.freedesktop.DBus.Properties"
	propsSignal   = "org.freedesktop.DBus.Properties.PropertiesChanged"
	legacySignal  = ifaceIface + ".PropertiesChanged"
	errIfaceUnkwn = "fi.w1.wpa_supplicant1.InterfaceUnknown"

	stateCompleted = "completed"
)

type Options struct {
	ConnectTimeout time.Duration // default 20s
	Clock          clockwork.Clock
	Log            logx.Logger
}

type Radio struct {
	conn    *dbus.Conn
	object  func(path dbus.ObjectPath) dbus.BusObject
	ifname  string
	timeout time.Duration
	clk     clockwork.Clock
	log     logx.Logger

	mu      sync.Mutex
	path    dbus.ObjectPath
	netPath dbus.ObjectPath
	cred    *types.Credential
	state   string
	changed chan struct{} // closed and replaced on every State change
}

// Open connects to the system bus and checks wpa_supplicant is running.
func Open(ifname string, opts Options) (*Radio, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 20 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = logx.Nop()
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	if !contains(names, busName) {
		conn.Close()
		return nil, &errcode.E{C: errcode.NotReady, Op: "wpa.open", Msg: busName + " not on system bus, is wpa_supplicant running with -u?"}
	}

	r := &Radio{
		conn:    conn,
		object:  func(p dbus.ObjectPath) dbus.BusObject { return conn.Object(busName, p) },
		ifname:  ifname,
		timeout: opts.ConnectTimeout,
		clk:     opts.Clock,
		log:     opts.Log.Named("wpa"),
		changed: make(chan struct{}),
	}
	r.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0,
		"type='signal',sender='"+busName+"',path_namespace='"+rootPath+"'")
	ch := make(chan *dbus.Signal, 16)
	r.conn.Signal(ch)
	go r.watchSignals(ch)
	return r, nil
}

func (r *Radio) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

func (r *Radio) Capabilities() string { return "wpa_supplicant " + r.ifname }

// -----------------------------------------------------------------------------
// wifi.Radio
// -----------------------------------------------------------------------------

func (r *Radio) State() types.RadioState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.path == "" {
		return types.RadioStopped
	}
	return mapState(r.state)
}

// IsStarted reports whether the interface is known and carries the
// node's network. An interface that already exists in the supplicant
// still goes through SetConfiguration and Start so the credential is
// applied.
func (r *Radio) IsStarted() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path != "" && r.netPath != "", nil
}

// SetConfiguration remembers the credential and, once the interface
// exists, replaces the supplicant's networks with it.
func (r *Radio) SetConfiguration(c types.Credential) error {
	r.mu.Lock()
	r.cred = &c
	path := r.path
	r.mu.Unlock()
	if path == "" {
		return nil
	}
	return r.addNetwork(path, c)
}

// Start adopts the supplicant's interface, creating it if needed, and adds
// the remembered network. It is safe to call again.
func (r *Radio) Start(ctx context.Context) error {
	if err := r.ensureInterface(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	cred, path, net := r.cred, r.path, r.netPath
	r.mu.Unlock()
	if cred != nil && net == "" {
		return r.addNetwork(path, *cred)
	}
	return nil
}

func (r *Radio) ensureInterface(ctx context.Context) error {
	r.mu.Lock()
	has := r.path != ""
	r.mu.Unlock()
	if has {
		return nil
	}
	var p dbus.ObjectPath
	err := r.object(rootPath).CallWithContext(ctx, rootIface+".GetInterface", 0, r.ifname).Store(&p)
	switch {
	case err == nil:
		r.log.Infow("supplicant interface adopted", "ifname", r.ifname, "path", string(p))
		return r.adopt(p)
	case dbusErrName(err) != errIfaceUnkwn:
		return fmt.Errorf("get interface %s: %w", r.ifname, err)
	}
	args := map[string]dbus.Variant{"Ifname": dbus.MakeVariant(r.ifname)}
	if err := r.object(rootPath).CallWithContext(ctx, rootIface+".CreateInterface", 0, args).Store(&p); err != nil {
		return fmt.Errorf("create interface %s: %w", r.ifname, err)
	}
	r.log.Infow("supplicant interface created", "ifname", r.ifname, "path", string(p))
	return r.adopt(p)
}

func (r *Radio) Connect(ctx context.Context) error {
	r.mu.Lock()
	path, net := r.path, r.netPath
	r.mu.Unlock()
	if path == "" || net == "" {
		return &errcode.E{C: errcode.NotReady, Op: "wpa.connect", Msg: "no interface or network"}
	}
	if err := r.object(path).CallWithContext(ctx, ifaceIface+".SelectNetwork", 0, net).Err; err != nil {
		return fmt.Errorf("select network: %w", err)
	}

	err := r.waitState(ctx, r.timeout, func(s string) bool { return s == stateCompleted })
	if err != nil {
		// Stop the supplicant's own retries; the manager owns the schedule.
		_ = r.object(path).Call(ifaceIface+".Disconnect", 0).Err
	}
	return err
}

func (r *Radio) WaitForEvent(ctx context.Context, ev types.RadioEvent) error {
	if ev != types.RadioEventDisconnected {
		return errcode.Unsupported
	}
	return r.waitState(ctx, 0, func(s string) bool { return s != stateCompleted })
}

// -----------------------------------------------------------------------------
// internals
// -----------------------------------------------------------------------------

func (r *Radio) adopt(p dbus.ObjectPath) error {
	v, err := r.object(p).GetProperty(ifaceIface + ".State")
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	s, _ := v.Value().(string)
	r.mu.Lock()
	r.path = p
	r.mu.Unlock()
	r.setState(s)
	return nil
}

func (r *Radio) addNetwork(path dbus.ObjectPath, c types.Credential) error {
	obj := r.object(path)
	if err := obj.Call(ifaceIface+".RemoveAllNetworks", 0).Err; err != nil {
		return fmt.Errorf("remove networks: %w", err)
	}
	var net dbus.ObjectPath
	if err := obj.Call(ifaceIface+".AddNetwork", 0, networkArgs(c)).Store(&net); err != nil {
		return fmt.Errorf("add network: %w", err)
	}
	r.mu.Lock()
	r.netPath = net
	r.mu.Unlock()
	return nil
}

func networkArgs(c types.Credential) map[string]dbus.Variant {
	args := map[string]dbus.Variant{"ssid": dbus.MakeVariant(c.SSID)}
	if c.Passphrase == "" {
		args["key_mgmt"] = dbus.MakeVariant("NONE")
	} else {
		args["psk"] = dbus.MakeVariant(c.Passphrase)
		args["key_mgmt"] = dbus.MakeVariant("WPA-PSK")
	}
	return args
}

func (r *Radio) setState(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s == r.state {
		return
	}
	r.log.Debugw("supplicant state", "from", r.state, "to", s)
	r.state = s
	close(r.changed)
	r.changed = make(chan struct{})
}

// waitState blocks until pred holds for the cached State. timeout 0 waits
// for ctx only.
func (r *Radio) waitState(ctx context.Context, timeout time.Duration, pred func(string) bool) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = r.clk.After(timeout)
	}
	for {
		r.mu.Lock()
		s, ch := r.state, r.changed
		r.mu.Unlock()
		if pred(s) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return &errcode.E{C: errcode.Timeout, Op: "wpa.wait_state", Msg: "last state " + s}
		case <-ch:
		}
	}
}

func (r *Radio) watchSignals(ch chan *dbus.Signal) {
	for sig := range ch {
		r.mu.Lock()
		path := r.path
		r.mu.Unlock()
		if s, ok := stateFromSignal(sig, path); ok {
			r.setState(s)
		}
	}
}

// stateFromSignal extracts the interface State from either the standard
// Properties signal or the supplicant's own PropertiesChanged.
func stateFromSignal(sig *dbus.Signal, path dbus.ObjectPath) (string, bool) {
	if sig == nil || path == "" || sig.Path != path {
		return "", false
	}
	var changed map[string]dbus.Variant
	switch sig.Name {
	case propsSignal:
		// Body: [interface_name string, changed_props map[string]Variant, invalidated []string]
		if len(sig.Body) < 2 {
			return "", false
		}
		if iface, _ := sig.Body[0].(string); iface != ifaceIface {
			return "", false
		}
		changed, _ = sig.Body[1].(map[string]dbus.Variant)
	case legacySignal:
		if len(sig.Body) < 1 {
			return "", false
		}
		changed, _ = sig.Body[0].(map[string]dbus.Variant)
	default:
		return "", false
	}
	v, ok := changed["State"]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

func mapState(s string) types.RadioState {
	switch s {
	case stateCompleted:
		return types.RadioConnected
	case "authenticating", "associating", "associated", "4way_handshake", "group_handshake":
		return types.RadioConnecting
	case "disconnected":
		return types.RadioDisconnected
	case "inactive", "scanning":
		return types.RadioStarted
	case "interface_disabled":
		return types.RadioStopped
	default:
		return types.RadioUnknown
	}
}

func dbusErrName(err error) string {
	var de dbus.Error
	if errors.As(err, &de) {
		return de.Name
	}
	var dp *dbus.Error
	if errors.As(err, &dp) && dp != nil {
		return dp.Name
	}
	return ""
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
