package main

import (
	"github.com/spf13/cobra"

	"github.com/KrystianD/bm2-battery-monitor/internal/config"
	"github.com/KrystianD/bm2-battery-monitor/internal/publish"
)

var (
	mqttHost  string
	mqttPort  int
	mqttTopic string
)

var mqttCmd = &cobra.Command{
	Use:   "mqtt",
	Short: "Publish live voltage readings to an MQTT broker",
	Long: `Continuously publish battery voltage readings to an MQTT topic.

Each reading is sent as a plain-text payload with two decimals, e.g. "12.74".
Publishing stops for a while when the broker keeps failing.`,
	Args: cobra.NoArgs,
	RunE: runMQTT,
}

func init() {
	mqttCmd.Flags().StringVar(&mqttHost, "mqtt-host", "127.0.0.1", "MQTT broker host")
	mqttCmd.Flags().IntVar(&mqttPort, "mqtt-port", 1883, "MQTT broker port")
	mqttCmd.Flags().StringVar(&mqttTopic, "mqtt-topic", "bm2", "MQTT topic")
	rootCmd.AddCommand(mqttCmd)
}

// applyMQTTFlags overrides config values with explicitly set flags.
func applyMQTTFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("mqtt-host") {
		cfg.MQTT.Host = mqttHost
	}
	if flags.Changed("mqtt-port") {
		cfg.MQTT.Port = mqttPort
	}
	if flags.Changed("mqtt-topic") {
		cfg.MQTT.Topic = mqttTopic
	}
}

func runMQTT(cmd *cobra.Command, args []string) error {
	client, cfg, log, err := startClient(cmd, func(cfg *config.Config) error {
		applyMQTTFlags(cmd, cfg)
		return cfg.ValidateMQTT()
	})
	if err != nil {
		return err
	}
	defer client.Stop()

	ctx := cmd.Context()
	mq, err := publish.DialMQTT(ctx, publish.MQTTOptions{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		Topic:    cfg.MQTT.Topic,
		ClientID: cfg.MQTT.ClientID,
		QoS:      byte(cfg.MQTT.QoS),
		Retain:   cfg.MQTT.Retain,
	}, log)
	if err != nil {
		return err
	}
	defer mq.Close()

	pub := publish.NewBreakerPublisher(cfg.MQTT.Topic, mq, publish.BreakerConfig{}, log)
	for v := range client.VoltageStream(ctx) {
		if err := pub.Publish(ctx, v); err != nil {
			log.Warn("[MQTT] publish failed", "voltage", v, "error", err)
			continue
		}
		log.Debug("[MQTT] published", "topic", cfg.MQTT.Topic, "voltage", v)
	}
	return nil
}
