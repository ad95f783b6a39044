package pipeline

import "testing"

func TestDetectInvoiceEmail(t *testing.T) {
	cases := []struct {
		name        string
		subject     string
		text        string
		attachments []string
		want        bool
	}{
		{
			name:        "utility invoice with pdf",
			subject:     "Su factura de electricidad - mayo 2025",
			text:        "Adjuntamos la factura del consumo del mes. Importe: 180,75 €",
			attachments: []string{"factura-mayo.pdf"},
			want:        true,
		},
		{
			name:    "invoice body without attachment",
			subject: "Factura IB-2025-0042",
			text:    "Consumo total: 1.250,5 kWh. Importe total: 180,75 €. Recibo domiciliado: 180,75 eur",
			want:    true,
		},
		{
			name:    "newsletter",
			subject: "Novedades de primavera",
			text:    "Descubre nuestras ofertas para este mes",
			want:    false,
		},
		{
			name:        "meeting notes with spreadsheet",
			subject:     "Acta reunión",
			text:        "Adjunto el acta de la reunión del martes",
			attachments: []string{"acta.xlsx"},
			want:        false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectInvoiceEmail(tc.subject, tc.text, "", tc.attachments)
			if got.IsInvoice != tc.want {
				t.Errorf("IsInvoice = %v (score %.2f), want %v", got.IsInvoice, got.Score, tc.want)
			}
		})
	}
}
