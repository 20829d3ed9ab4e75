// Package render превращает шаблон конфигурации в текст для VPN-клиента.
//
// Рендеринг — чистая функция: одинаковая пара (шаблон, DNS-провайдер) всегда
// даёт байт-в-байт одинаковый результат. Шаблоны категории site-request
// не рендерятся, вместо текста возвращается внешняя ссылка.
package render

import (
	"fmt"
	"strings"

	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

// AllowedIPs фиксированная директива маршрутизации секции [Peer].
const AllowedIPs = "0.0.0.0/0, ::/0"

// Config рендерит шаблон с выбранным DNS-провайдером.
//
// Формат вывода — две секции: [Interface] с приватным ключом, дополнительными
// параметрами в порядке объявления, адресом и DNS-строкой, затем [Peer]
// с публичным ключом, AllowedIPs и endpoint. Возвращает RenderError,
// если у шаблона нет записи для выбранного провайдера.
func Config(tpl models.TemplateData, dnsChoice string) (string, error) {
	if tpl.IsSiteRequest() {
		return tpl.ResourceURL, nil
	}

	dns, ok := tpl.DNS[dnsChoice]
	if !ok {
		return "", &models.RenderError{DNSChoice: dnsChoice}
	}

	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", tpl.PrivateKey)
	for _, p := range tpl.Extra {
		fmt.Fprintf(&b, "%s = %s\n", p.Key, p.Value)
	}
	fmt.Fprintf(&b, "Address = %s\n", tpl.Address)
	fmt.Fprintf(&b, "DNS = %s\n", dns)
	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", tpl.PublicKey)
	fmt.Fprintf(&b, "AllowedIPs = %s\n", AllowedIPs)
	fmt.Fprintf(&b, "Endpoint = %s\n", tpl.Endpoint)

	return b.String(), nil
}
