package collcomm

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/unixpickle/essentials"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"
)

// Rendezvous blocks until every member of the group has
// connected to every other member, and returns the local
// member's Comms.
//
// Rank 0 listens on the master address and collects a
// hello from each other rank. Once all ranks have checked
// in, it sends every rank the list of peer addresses, and
// the ranks connect to each other directly.
//
// The whole procedure is bounded by cfg.Timeout. If the
// group cannot be formed, a *RendezvousError is returned.
// Rank 0 tells the ranks that did reach it when it gives
// up, so a mismatched configuration fails everywhere.
func Rendezvous(ctx context.Context, cfg GroupConfig) (*Comms, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &RendezvousError{Rank: cfg.Rank, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	c := newComms(cfg)
	if cfg.Size == 1 {
		return c, nil
	}

	r := &rendezvous{cfg: cfg, comms: c, logger: log.WithField("rank", cfg.Rank)}
	var err error
	if cfg.Rank == 0 {
		err = r.coordinate(ctx)
	} else {
		err = r.join(ctx)
	}
	if err != nil {
		c.Close()
		if ctx.Err() != nil {
			err = errors.Wrapf(err, "timed out after %v", cfg.Timeout)
		}
		return nil, &RendezvousError{Rank: cfg.Rank, Err: err}
	}

	for _, p := range c.peers {
		if p != nil {
			p.setDeadline(time.Time{})
		}
	}
	r.logger.WithField("size", cfg.Size).Debug("process group formed")
	return c, nil
}

const abortWriteTimeout = time.Second

type rendezvous struct {
	cfg    GroupConfig
	comms  *Comms
	logger *log.Entry
}

// coordinate is run by rank 0.
func (r *rendezvous) coordinate(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", r.cfg.MasterHostPort())
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	defer listener.Close()
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	addrs := make([]string, r.cfg.Size)
	addrs[0] = listener.Addr().String()

	missing := make([]int, 0, r.cfg.Size-1)
	for i := 1; i < r.cfg.Size; i++ {
		missing = append(missing, i)
	}

	for len(missing) > 0 {
		conn, err := listener.Accept()
		if err != nil {
			err = errors.Wrapf(err, "waiting for ranks %v", missing)
			r.abort(err)
			return err
		}
		p := newPeerConn(conn)
		setDeadlineFromContext(ctx, p)

		var msg hello
		if err := p.decode(&msg); err != nil {
			r.logger.WithError(err).WithField("remote", p.RemoteAddr()).Warn(
				"dropping connection without hello")
			p.Close()
			continue
		}
		err = r.checkHello(msg)
		if err == nil && r.comms.peers[msg.Rank] != nil {
			err = errors.Errorf("rank %d joined twice", msg.Rank)
		}
		if err != nil {
			p.encode(&roster{Err: err.Error()})
			p.Close()
			r.abort(err)
			return err
		}

		r.comms.peers[msg.Rank] = p
		addrs[msg.Rank] = msg.Addr
		for i, rank := range missing {
			if rank == msg.Rank {
				essentials.OrderedDelete(&missing, i)
				break
			}
		}
		r.logger.WithFields(log.Fields{
			"peer":    msg.Rank,
			"addr":    msg.Addr,
			"missing": len(missing),
		}).Debug("rank checked in")
	}

	var errs error
	for rank, p := range r.comms.peers {
		if p == nil {
			continue
		}
		if err := p.encode(&roster{Addrs: addrs}); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "send roster to rank %d", rank))
		}
	}
	return errs
}

// abort tells every rank that has already checked in
// that the group will not form.
func (r *rendezvous) abort(cause error) {
	for _, p := range r.comms.peers {
		if p != nil {
			// The rendezvous deadline may already have passed.
			p.conn.SetWriteDeadline(time.Now().Add(abortWriteTimeout))
			p.encode(&roster{Err: cause.Error()})
		}
	}
}

// join is run by every rank other than 0.
func (r *rendezvous) join(ctx context.Context) error {
	conn, err := dialWithRetry(ctx, r.cfg.DialInterval, r.cfg.MasterHostPort())
	if err != nil {
		return errors.Wrap(err, "reach coordinator")
	}
	master := newPeerConn(conn)
	r.comms.peers[0] = master
	setDeadlineFromContext(ctx, master)

	// Peers reach us on the interface we use to reach the
	// coordinator.
	localIP := conn.LocalAddr().(*net.TCPAddr).IP
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort(localIP.String(), "0"))
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	defer listener.Close()
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	err = master.encode(&hello{
		RunID: r.cfg.RunID,
		Rank:  r.cfg.Rank,
		Size:  r.cfg.Size,
		Addr:  listener.Addr().String(),
	})
	if err != nil {
		return errors.Wrap(err, "send hello to coordinator")
	}

	var members roster
	if err := master.decode(&members); err != nil {
		return errors.Wrap(err, "wait for roster")
	}
	if members.Err != "" {
		return errors.Errorf("coordinator aborted: %s", members.Err)
	}
	if len(members.Addrs) != r.cfg.Size {
		return errors.Errorf("roster has %d members, expected %d", len(members.Addrs), r.cfg.Size)
	}

	return r.connectMesh(ctx, listener, members.Addrs)
}

// connectMesh dials every lower non-zero rank and accepts
// a connection from every higher rank.
func (r *rendezvous) connectMesh(ctx context.Context, listener net.Listener,
	addrs []string) error {
	var lock sync.Mutex
	var errs error
	addErr := func(err error) {
		lock.Lock()
		errs = multierr.Append(errs, err)
		lock.Unlock()
	}

	var wg sync.WaitGroup
	for rank := 1; rank < r.cfg.Rank; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			if err := r.dialPeer(ctx, rank, addrs[rank]); err != nil {
				addErr(errors.Wrapf(err, "connect to rank %d", rank))
			}
		}(rank)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := r.cfg.Rank + 1; i < r.cfg.Size; i++ {
			if err := r.acceptPeer(ctx, listener); err != nil {
				addErr(err)
				return
			}
		}
	}()

	wg.Wait()
	return errs
}

func (r *rendezvous) dialPeer(ctx context.Context, rank int, addr string) error {
	conn, err := dialWithRetry(ctx, r.cfg.DialInterval, addr)
	if err != nil {
		return err
	}
	p := newPeerConn(conn)
	setDeadlineFromContext(ctx, p)
	if err := p.encode(&hello{RunID: r.cfg.RunID, Rank: r.cfg.Rank, Size: r.cfg.Size}); err != nil {
		p.Close()
		return err
	}
	var reply hello
	if err := p.decode(&reply); err != nil {
		p.Close()
		return err
	}
	if err := r.checkHello(reply); err != nil {
		p.Close()
		return err
	} else if reply.Rank != rank {
		p.Close()
		return errors.Errorf("expected rank %d at %s but found rank %d", rank, addr, reply.Rank)
	}
	r.comms.peers[rank] = p
	return nil
}

func (r *rendezvous) acceptPeer(ctx context.Context, listener net.Listener) error {
	conn, err := listener.Accept()
	if err != nil {
		return errors.Wrap(err, "accept peer")
	}
	p := newPeerConn(conn)
	setDeadlineFromContext(ctx, p)
	var msg hello
	if err := p.decode(&msg); err != nil {
		p.Close()
		return errors.Wrap(err, "read peer hello")
	}
	if err := r.checkHello(msg); err != nil {
		p.Close()
		return err
	} else if msg.Rank <= r.cfg.Rank || r.comms.peers[msg.Rank] != nil {
		p.Close()
		return errors.Errorf("unexpected connection from rank %d", msg.Rank)
	}
	if err := p.encode(&hello{RunID: r.cfg.RunID, Rank: r.cfg.Rank, Size: r.cfg.Size}); err != nil {
		p.Close()
		return err
	}
	r.comms.peers[msg.Rank] = p
	return nil
}

func (r *rendezvous) checkHello(msg hello) error {
	switch {
	case msg.RunID != r.cfg.RunID:
		return fmt.Errorf("rank %d belongs to run %q, not %q", msg.Rank, msg.RunID, r.cfg.RunID)
	case msg.Size != r.cfg.Size:
		return fmt.Errorf("rank %d has world size %d, expected %d", msg.Rank, msg.Size, r.cfg.Size)
	case msg.Rank < 1 || msg.Rank >= r.cfg.Size:
		return fmt.Errorf("invalid rank %d for world size %d", msg.Rank, r.cfg.Size)
	}
	return nil
}

// dialWithRetry dials addr until it succeeds or ctx ends,
// making at most one attempt per interval.
func dialWithRetry(ctx context.Context, interval time.Duration, addr string) (net.Conn, error) {
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	var d net.Dialer
	var lastErr error
	for {
		if err := limiter.Wait(ctx); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.WithError(err).WithField("addr", addr).Debug("dial failed, retrying")
	}
}

func setDeadlineFromContext(ctx context.Context, p *peerConn) {
	if deadline, ok := ctx.Deadline(); ok {
		p.setDeadline(deadline)
	}
}
