package mqtt

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client manages the MQTT connection to the BLE gateway broker.
// Device traffic goes through Transport.
type Client struct {
	client mqtt.Client
	config ClientConfig
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string

	ConnectTimeout time.Duration

	// OnConnectionLost runs after the broker connection drops. Partial
	// frames buffered before the drop are meaningless afterwards, so the
	// server wires this to reset every live session.
	OnConnectionLost func(err error)

	// OnReconnect runs after an automatic reconnect. The broker forgets the
	// subscriptions of a clean session, so the server wires this to
	// Transport.Resubscribe.
	OnReconnect func()
}

// NewClient creates a new MQTT client connection
func NewClient(config ClientConfig) (*Client, error) {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetDefaultPublishHandler(messagePubHandler)
	var connectedOnce atomic.Bool
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		if !connectedOnce.CompareAndSwap(false, true) {
			log.Println("MQTT: Connection re-established")
			if config.OnReconnect != nil {
				config.OnReconnect()
			}
			return
		}
		log.Println("MQTT: Connection established")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT: Connection lost: %v", err)
		if config.OnConnectionLost != nil {
			config.OnConnectionLost(err)
		}
	})
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(config.ConnectTimeout)

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(config.ConnectTimeout) {
		return nil, fmt.Errorf("failed to connect to MQTT broker: timed out after %s", config.ConnectTimeout)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Println("MQTT Client: Connected to broker:", config.Broker)

	return &Client{
		client: client,
		config: config,
	}, nil
}

// GetNativeClient returns the underlying paho MQTT client
func (c *Client) GetNativeClient() mqtt.Client {
	return c.client
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close closes the MQTT client connection
func (c *Client) Close() {
	c.client.Disconnect(250)
	log.Println("MQTT Client: Disconnected")
}

var messagePubHandler mqtt.MessageHandler = func(client mqtt.Client, msg mqtt.Message) {
	log.Printf("MQTT: Received unexpected message on topic: %s", msg.Topic())
}
