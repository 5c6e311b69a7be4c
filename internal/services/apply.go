package services

import (
	"sakinah/internal/log"
	"sakinah/internal/remote"
)

// ApplyEvent merges one change-feed event into the cache. Events for any
// owner other than the loaded one are dropped. Applying the same event twice
// leaves the cache unchanged.
func (c *Controller) ApplyEvent(owner string, ev remote.Event) {
	c.mu.Lock()
	if owner == "" || owner != c.store.Owner() || c.state == Unauthenticated {
		c.mu.Unlock()
		c.logger.Debug("Ignoring event for inactive owner",
			log.FieldOwner, owner, log.FieldTable, string(ev.Table), log.FieldEventKind, string(ev.Kind))
		return
	}
	changed := c.apply(ev)
	c.mu.Unlock()

	if changed {
		c.bus.Notify()
	}
}

// apply must be called with c.mu held.
func (c *Controller) apply(ev remote.Event) bool {
	switch ev.Table {
	case remote.TableCategories:
		switch ev.Kind {
		case remote.Insert, remote.Update:
			c.store.UpsertCategory(ev.Category)
			return true
		case remote.Delete:
			return c.store.RemoveCategory(ev.Category.ID)
		}
	case remote.TableTransactions:
		switch ev.Kind {
		case remote.Insert, remote.Update:
			c.store.UpsertTransaction(ev.Transaction)
			return true
		case remote.Delete:
			return c.store.RemoveTransactions(ev.Transaction.ID) > 0
		}
	}
	c.logger.Warn("Unknown change event", log.FieldTable, string(ev.Table), log.FieldEventKind, string(ev.Kind))
	return false
}
