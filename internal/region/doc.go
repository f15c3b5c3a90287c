// Package region provides the per-worker storage arena that backs every
// session's fixed-size buffer regions: an explicit per-worker Arena
// passed to session construction in place of the original's
// thread-local pool pointer. Arena realizes that with
// github.com/indigo-web/utils/arena: one arena per accept-worker, sized
// once for the worker's whole session-pool capacity, carved into fixed
// non-growing slices handed out to sessions as they're allocated.
package region
