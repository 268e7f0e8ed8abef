// Package discovery finds mbrsim servers on the local network over mDNS.
//
// Servers register the "_mbrsim._tcp" service type with Advertise. Their
// TXT records carry "tls=0" or "tls=1" and usually "version=...".
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	scanner.Timeout = 3 * time.Second
//	servers, err := scanner.Scan(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, s := range servers {
//	    fmt.Println(s)
//	}
//
// Advertising, from the server side:
//
//	stop, err := discovery.Advertise("lab", 8080, false, "version=1.0.0")
//	if err != nil {
//	    return err
//	}
//	defer stop()
//
// mDNS does not cross subnets. When a server is not found, connect with
// its address directly.
package discovery
