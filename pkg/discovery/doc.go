// Package discovery announces hubs on the local network and finds them.
//
// Hubs register an mDNS service of type "_astrobus._tcp"; clients browse
// for all hubs or resolve one by instance name. Entries seen on several
// network interfaces are aggregated into a single service with all
// addresses merged.
package discovery
