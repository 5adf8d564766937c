package rabbitmq

// LifecycleExchange — exchange для событий жизненного цикла сервисов.
const LifecycleExchange = "lifecycle"

// RoutingKeyRenewed — ключ маршрутизации события продления сервиса.
const RoutingKeyRenewed = "service.renewed"

// QueueConfig описывает очередь и ключ, которым она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetLifecycleQueues возвращает очереди, которые объявляются при старте.
func GetLifecycleQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "lifecycle.renewed", RoutingKey: RoutingKeyRenewed},
	}
}
