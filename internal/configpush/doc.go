// Package configpush persists configuration pushed by the platform through
// thing.service.configPush and reports the held versions back with
// thing.event.config.post.
//
// Versions are stored per key in the config_versions table. A push only
// replaces an entry when its version is newer.
package configpush
