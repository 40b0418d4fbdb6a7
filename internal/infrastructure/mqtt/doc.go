// Package mqtt provides MQTT client connectivity for NetRules Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// NetRules uses MQTT as its outbound event bus: every change detected on
// the network controller is published as a JSON event, and home-automation
// platforms (or anything else on the broker) subscribe to react. The bus
// also carries inbound refresh signals so external systems can request an
// immediate poll after making their own controller changes.
//
//	Network Controller → NetRules Core → MQTT Broker → Automation platforms
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to refresh requests from other systems
//	err = client.Subscribe(mqtt.Topics{}.PollRefresh(), 1,
//	    func(topic string, payload []byte) error {
//	        poller.RegisterExternalChange(ctx)
//	        return nil
//	    })
//
//	// Publish a change event
//	topic := mqtt.Topics{}.EventChange("firewall_policy", "abc123")
//	client.Publish(topic, payload, 1, false)
package mqtt
