package template

import "testing"

func TestRender(t *testing.T) {
	vars := map[string]string{
		"client_name":      "Мария",
		"service_name":     "Массаж спины",
		"staff_name":       "Анна",
		"appointment_time": "02.02.2026 10:00",
		"location":         "ул. Ленина, 1",
	}

	cases := []struct {
		name string
		tpl  string
		want string
	}{
		{
			"full substitution",
			"Здравствуйте, {client_name}! Ждём вас на {service_name} {appointment_time}.",
			"Здравствуйте, Мария! Ждём вас на Массаж спины 02.02.2026 10:00.",
		},
		{
			"reordered placeholders",
			"{appointment_time}: {service_name} у {staff_name}",
			"02.02.2026 10:00: Массаж спины у Анна",
		},
		{
			"repeated placeholder",
			"{client_name}, {client_name}!",
			"Мария, Мария!",
		},
		{
			"missing variable left intact",
			"Оставьте отзыв: {review_link}",
			"Оставьте отзыв: {review_link}",
		},
		{
			"no placeholders",
			"Просто текст",
			"Просто текст",
		},
		{
			"unclosed brace passes through",
			"Привет {client_name",
			"Привет {client_name",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.tpl, vars); got != tc.want {
				t.Fatalf("Render(%q) = %q, want %q", tc.tpl, got, tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := []string{
		"Здравствуйте, {client_name}!",
		"{appointment_time} — {service_name} у {staff_name}, адрес: {location}",
		"Без плейсхолдеров",
		"Ссылки: {review_link} {booking_link}",
	}
	for _, tpl := range valid {
		if err := Validate(tpl); err != nil {
			t.Fatalf("Validate(%q) = %v, want nil", tpl, err)
		}
	}

	invalid := []string{
		"Привет {client_name",
		"Привет client_name}",
		"{unknown_thing}",
		"{client name}",
		"{{client_name}}",
	}
	for _, tpl := range invalid {
		if err := Validate(tpl); err == nil {
			t.Fatalf("Validate(%q) = nil, want error", tpl)
		}
	}
}
