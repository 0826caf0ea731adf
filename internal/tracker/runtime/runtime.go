// Package runtime owns the live tracker state. It feeds connection events
// through the session dispatcher, sends what the dispatcher asks for and
// persists progress when it changes.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"celestetracker.ai/internal/metrics"
	"celestetracker.ai/internal/persistence/dpcache"
	"celestetracker.ai/internal/persistence/kvstore"
	"celestetracker.ai/internal/protocol"
	"celestetracker.ai/internal/tracker/catalog"
	"celestetracker.ai/internal/tracker/logic"
	"celestetracker.ai/internal/tracker/rules"
	"celestetracker.ai/internal/tracker/session"
	"celestetracker.ai/internal/transport/apclient"
)

type Config struct {
	Catalog  *catalog.Catalog
	Settings kvstore.Settings

	AllowSequenceBreaks bool
	RetryInterval       time.Duration
	MaxRetries          int

	// RulesPath, when set, is translated into requirement trees at startup
	// and again on every change if WatchRules is set.
	RulesPath  string
	WatchRules bool
}

// Deps are the runtime's collaborators. Store, Cache and Metrics may be nil.
type Deps struct {
	Store   *kvstore.Store
	Cache   *dpcache.Cache
	Metrics *metrics.Metrics
	Logger  *log.Logger
}

type Runtime struct {
	cfg  Config
	deps Deps
	log  *log.Logger
	mgr  *apclient.Manager

	mu    sync.Mutex
	state session.State

	savedCaps   uint64
	savedChecks uint64
}

func New(ctx context.Context, cfg Config, deps Deps) (*Runtime, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("runtime: nil catalog")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	r := &Runtime{cfg: cfg, deps: deps, log: logger}
	r.state = session.New(cfg.Catalog, r.sessionOptions())

	if err := r.seed(ctx); err != nil {
		return nil, err
	}
	if cfg.RulesPath != "" {
		doc, err := rules.Load(cfg.RulesPath)
		if err != nil {
			return nil, err
		}
		r.ApplyRules(rules.Translate(doc, cfg.Catalog))
	}

	r.mgr = apclient.New(apclient.Config{
		URL:           cfg.Settings.URL,
		RetryInterval: cfg.RetryInterval,
		MaxRetries:    cfg.MaxRetries,
		Logger:        logger,
	}, apclient.Handlers{
		OnOpen:      r.onOpen,
		OnMessages:  r.onMessages,
		OnClose:     r.onClose,
		OnExhausted: r.onExhausted,
		OnState:     r.onConnState,
	})
	r.observe()
	return r, nil
}

func (r *Runtime) sessionOptions() session.Options {
	return session.Options{
		SlotName:            r.cfg.Settings.SlotName,
		Password:            r.cfg.Settings.Password,
		ClientUUID:          r.cfg.Settings.ClientUUID,
		AllowSequenceBreaks: r.cfg.AllowSequenceBreaks,
	}
}

// seed loads persisted capabilities, checked flags and trees.
func (r *Runtime) seed(ctx context.Context) error {
	st := r.deps.Store
	if st == nil {
		return nil
	}
	var caps, checked map[string]bool
	var trees map[string]logic.Node
	if _, err := st.GetJSON(ctx, kvstore.KeyMechanics, &caps); err != nil {
		r.log.Printf("seed_failed key=%s err=%v", kvstore.KeyMechanics, err)
	}
	if _, err := st.GetJSON(ctx, kvstore.KeyChecked, &checked); err != nil {
		r.log.Printf("seed_failed key=%s err=%v", kvstore.KeyChecked, err)
	}
	if _, err := st.GetJSON(ctx, kvstore.KeyLogic, &trees); err != nil {
		r.log.Printf("seed_failed key=%s err=%v", kvstore.KeyLogic, err)
	}

	s := r.state
	var dropped []string
	if len(caps) > 0 {
		s, dropped = s.WithCapabilities(caps)
		r.logDropped(kvstore.KeyMechanics, dropped)
	}
	if len(checked) > 0 {
		s, dropped = s.WithChecked(checked)
		r.logDropped(kvstore.KeyChecked, dropped)
	}
	if len(trees) > 0 {
		valid := make(map[string]logic.Node, len(trees))
		for k, n := range trees {
			if err := n.Validate(); err != nil {
				r.log.Printf("seed_tree_invalid key=%s err=%v", k, err)
				continue
			}
			valid[k] = n
		}
		s, dropped = s.WithTrees(valid)
		r.logDropped(kvstore.KeyLogic, dropped)
	}
	r.state = s
	r.savedCaps = s.CapsVersion
	r.savedChecks = s.ChecksVersion
	c := s.Counts()
	r.log.Printf("seeded caps=%d checked=%d trees=%d", len(s.Caps.Unlocked()), c.Checked, len(trees))
	return nil
}

func (r *Runtime) logDropped(key string, dropped []string) {
	if len(dropped) > 0 {
		r.log.Printf("seed_dropped key=%s count=%d keys=%s", key, len(dropped), strings.Join(dropped, ","))
	}
}

// Connect opens the connection with the current settings.
func (r *Runtime) Connect() {
	r.mu.Lock()
	url := r.cfg.Settings.URL
	r.mu.Unlock()
	r.mgr.Connect(url)
}

// Disconnect closes the connection and stops reconnecting.
func (r *Runtime) Disconnect() { r.mgr.Disconnect() }

// UpdateSettings stores new connection settings. They take effect on the
// next Connect.
func (r *Runtime) UpdateSettings(ctx context.Context, st kvstore.Settings) error {
	if st.ClientUUID == "" {
		st.ClientUUID = r.cfg.Settings.ClientUUID
	}
	r.mu.Lock()
	r.cfg.Settings = st
	r.state = r.state.WithOptions(r.sessionOptions())
	r.mu.Unlock()
	if r.deps.Store == nil {
		return nil
	}
	return r.deps.Store.SaveSettings(ctx, st)
}

// Run connects and blocks until ctx is done, then closes the connection.
func (r *Runtime) Run(ctx context.Context, autoConnect bool) error {
	g, ctx := errgroup.WithContext(ctx)
	if r.cfg.RulesPath != "" && r.cfg.WatchRules {
		g.Go(func() error {
			return rules.Watch(ctx, r.cfg.RulesPath, r.cfg.Catalog, r.log, r.ApplyRules)
		})
	}
	g.Go(func() error {
		if autoConnect {
			r.Connect()
		}
		<-ctx.Done()
		r.mgr.Close()
		r.persist(context.Background())
		return nil
	})
	return g.Wait()
}

// Close tears down the connection without waiting for Run.
func (r *Runtime) Close() {
	r.mgr.Close()
}

// State returns a copy of the current tracker state.
func (r *Runtime) State() session.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

func (r *Runtime) ConnectionState() apclient.State { return r.mgr.State() }

// RequestCheck marks an objective complete and tells the server.
func (r *Runtime) RequestCheck(ctx context.Context, key string) error {
	r.mu.Lock()
	next, out, err := session.RequestCheck(r.state, key)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.state = next
	r.mu.Unlock()

	r.send(out)
	r.log.Printf("check_requested key=%s", key)
	r.persist(ctx)
	r.observe()
	return nil
}

// ApplyRules swaps in the requirement trees of a rules translation.
func (r *Runtime) ApplyRules(tr rules.Translation) {
	byKey := make(map[string]logic.Node, len(tr.Keys))
	for name, tree := range tr.Trees() {
		e, ok := r.cfg.Catalog.LookupName(name)
		if !ok {
			continue
		}
		byKey[e.Key] = tree
	}
	r.mu.Lock()
	next, _ := r.state.WithTrees(byKey)
	r.state = next
	trees := next.Trees()
	r.mu.Unlock()

	r.log.Printf("rules_applied trees=%d unmapped=%d inherited=%d", len(byKey), len(tr.Unmapped), len(tr.Inherited))
	if r.deps.Store != nil {
		if err := r.deps.Store.SetJSON(context.Background(), kvstore.KeyLogic, trees); err != nil {
			r.persistFailed(kvstore.KeyLogic, err)
		}
	}
	r.observe()
}

func (r *Runtime) onOpen() {
	r.mu.Lock()
	r.state = session.Opened(r.state)
	url := r.mgr.URL()
	var logs []string
	if r.deps.Cache != nil {
		data, h, ok, err := r.deps.Cache.Load(url)
		switch {
		case err != nil:
			r.log.Printf("data_package_cache_failed url=%s err=%v", url, err)
		case ok:
			// Reconcile against the cached package so items that arrive
			// before the fresh one resolve immediately.
			r.state, _, logs = session.Step(r.state, dpcache.Package(data))
			r.log.Printf("data_package_cache_hit url=%s saved_at=%s", url, h.SavedAt)
		}
	}
	r.mu.Unlock()
	r.writeLogs(logs)
	r.log.Printf("socket_open url=%s", url)
}

func (r *Runtime) onMessages(msgs []protocol.Inbound) {
	for _, msg := range msgs {
		r.dispatch(msg)
	}
	r.persist(context.Background())
	r.observe()
}

func (r *Runtime) dispatch(msg protocol.Inbound) {
	if m := r.deps.Metrics; m != nil {
		m.Messages.WithLabelValues(msg.Command()).Inc()
		if _, ok := msg.(protocol.Refused); ok {
			m.Refusals.Inc()
		}
	}

	r.mu.Lock()
	next, out, logs := session.Step(r.state, msg)
	r.state = next
	r.mu.Unlock()

	r.writeLogs(logs)
	r.send(out)

	if dp, ok := msg.(protocol.DataPackage); ok && r.deps.Cache != nil {
		if game, ok := dp.Data.Games[protocol.Game]; ok {
			if err := r.deps.Cache.Save(r.mgr.URL(), game); err != nil {
				r.log.Printf("data_package_cache_save_failed err=%v", err)
			}
		}
	}
	switch msg.(type) {
	case protocol.Connected, protocol.DataPackage:
		r.log.Print(r.StatusLine())
	}
}

func (r *Runtime) onClose(code int, reconnecting bool) {
	r.mu.Lock()
	r.state = session.Reset(r.state)
	r.mu.Unlock()
	if reconnecting && r.deps.Metrics != nil {
		r.deps.Metrics.ReconnectAttempts.Inc()
	}
	r.log.Printf("socket_closed code=%d reconnecting=%v", code, reconnecting)
	r.observe()
}

func (r *Runtime) onExhausted(attempts int) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.Exhausted.Inc()
	}
	r.log.Printf("reconnect_gave_up attempts=%d url=%s", attempts, r.mgr.URL())
}

func (r *Runtime) onConnState(s apclient.State) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.SetConnectionState(string(s))
	}
}

func (r *Runtime) send(out []protocol.Outbound) {
	if len(out) == 0 {
		return
	}
	ok := r.mgr.Send(out...)
	result := "ok"
	if !ok {
		result = "failed"
	}
	cmds := make([]string, 0, len(out))
	for _, m := range out {
		cmds = append(cmds, m.Command())
		if r.deps.Metrics != nil {
			r.deps.Metrics.Sent.WithLabelValues(m.Command(), result).Inc()
		}
	}
	if !ok {
		r.log.Printf("send_failed cmds=%s", strings.Join(cmds, ","))
	}
}

func (r *Runtime) writeLogs(lines []string) {
	for _, l := range lines {
		r.log.Print(l)
	}
}

// persist writes capabilities and checked flags whose version moved since
// the last successful write.
func (r *Runtime) persist(ctx context.Context) {
	st := r.deps.Store
	if st == nil {
		return
	}
	r.mu.Lock()
	s := r.state
	capsDirty := s.CapsVersion != r.savedCaps
	checksDirty := s.ChecksVersion != r.savedChecks
	var caps, checked map[string]bool
	if capsDirty {
		caps = s.Caps.Clone()
	}
	if checksDirty {
		checked = s.CheckedMap()
	}
	r.mu.Unlock()

	if capsDirty {
		if err := st.SetJSON(ctx, kvstore.KeyMechanics, caps); err != nil {
			r.persistFailed(kvstore.KeyMechanics, err)
		} else {
			r.mu.Lock()
			r.savedCaps = s.CapsVersion
			r.mu.Unlock()
		}
	}
	if checksDirty {
		if err := st.SetJSON(ctx, kvstore.KeyChecked, checked); err != nil {
			r.persistFailed(kvstore.KeyChecked, err)
		} else {
			r.mu.Lock()
			r.savedChecks = s.ChecksVersion
			r.mu.Unlock()
		}
	}
}

func (r *Runtime) persistFailed(key string, err error) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.PersistErrors.Inc()
	}
	r.log.Printf("persist_failed key=%s err=%v", key, err)
}

func (r *Runtime) observe() {
	if r.deps.Metrics == nil {
		return
	}
	r.mu.Lock()
	s := r.state
	r.mu.Unlock()
	r.deps.Metrics.ObserveState(s)
}

// StatusLine summarizes the state in one log line.
func (r *Runtime) StatusLine() string {
	r.mu.Lock()
	s := r.state
	r.mu.Unlock()
	c := s.Counts()
	line := fmt.Sprintf("status phase=%s checked=%d/%d reachable=%d mapped=%d strawberries=%d pending=%d caps=%d",
		s.Phase, c.Checked, c.Included, c.Reachable, c.Mapped, s.Strawberries, s.Pending.Len(), len(s.Caps.Unlocked()))
	if len(s.Errors) > 0 {
		errs := append([]string(nil), s.Errors...)
		sort.Strings(errs)
		line += fmt.Sprintf(" errors=%q", strings.Join(errs, "; "))
	}
	return line
}
