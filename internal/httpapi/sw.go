package httpapi

import "net/http"

const serviceWorkerScript = `self.addEventListener('push', function(event) {
  if (!event.data) return;
  const payload = event.data.json();
  event.waitUntil(self.registration.showNotification(payload.title, {
    body: payload.body,
    icon: payload.icon,
    data: payload.data,
  }));
});

self.addEventListener('notificationclick', function(event) {
  event.notification.close();
  const chatId = event.notification.data && event.notification.data.chat_id;
  event.waitUntil(clients.openWindow(chatId ? ('/?chat=' + chatId) : '/'));
});
`

// ServiceWorker implements GET /sw.js, scoped to the whole origin via
// Service-Worker-Allowed so it can control pages outside its own path.
func (s *Server) ServiceWorker(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Service-Worker-Allowed", "/")
	w.Write([]byte(serviceWorkerScript))
}
