package bridge

import "time"

type MQTTConf struct {
	ClientID     string        // ClientID - уникальное имя клиента для брокеров.
	Schema       string        // Schema - тип подключения.
	Host         string        // Host - адрес MQTT сервера.
	Port         string        // Port - порт MQTT сервера.
	User         string        // User - логин для подключения к MQTT серверу.
	Password     string        // Password - пароль для подключения к MQTT серверу.
	Qos          byte          // Qos - качество обслуживания.
	TopicPrefix  string        // TopicPrefix - префикс всех топиков.
	PollInterval time.Duration // PollInterval - период опроса universe.
}

type DMXCommand struct {
	Channel uint16 `json:"channel"` // Channel is the channel a command can talk to (0-511).
	Value   uint8  `json:"value"`   // Value is the value a DMX channel can represent (0-255).
}

type Payload []DMXCommand

// UniverseFrame is published whenever received data of a universe changes.
type UniverseFrame struct {
	Universe int    `json:"universe"`
	Address  string `json:"address"`
	Data     []int  `json:"data"`
}

type message struct {
	topic   string
	payload []byte
}
