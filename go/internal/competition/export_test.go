package competition

import "context"

func NewTestWatcher(store *Store, handler TransitionHandler) *Watcher {
	return newWatcher(store, handler, DefaultWatcherConfig())
}

func (w *Watcher) HandleNotification(ctx context.Context, extra string) error {
	return w.handleNotification(ctx, extra)
}

func (w *Watcher) Reconcile(ctx context.Context) error {
	return w.reconcile(ctx)
}
