package window

// SlidingWindow хранит последние capacity значений в порядке добавления.
// Не потокобезопасен: владелец окна один (цикл опроса или обработчик сессии).
type SlidingWindow[T any] struct {
	buf   []T
	start int
	size  int
}

// New создает окно фиксированной емкости. Если передан baseline, окно
// сразу заполняется этим значением, чтобы графики рисовались без пустот.
func New[T any](capacity int, baseline ...T) *SlidingWindow[T] {
	if capacity <= 0 {
		capacity = 1
	}

	w := &SlidingWindow[T]{
		buf: make([]T, capacity),
	}

	if len(baseline) > 0 {
		w.Fill(baseline[0])
	}

	return w
}

// Push добавляет значение, вытесняя самое старое при переполнении
func (w *SlidingWindow[T]) Push(value T) {
	capacity := len(w.buf)

	if w.size < capacity {
		w.buf[(w.start+w.size)%capacity] = value
		w.size++
		return
	}

	w.buf[w.start] = value
	w.start = (w.start + 1) % capacity
}

// Snapshot возвращает копию содержимого от самого старого к самому новому
func (w *SlidingWindow[T]) Snapshot() []T {
	out := make([]T, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Last возвращает не более n последних значений в порядке добавления
func (w *SlidingWindow[T]) Last(n int) []T {
	if n > w.size {
		n = w.size
	}
	if n <= 0 {
		return []T{}
	}

	out := make([]T, n)
	offset := w.size - n
	for i := 0; i < n; i++ {
		out[i] = w.buf[(w.start+offset+i)%len(w.buf)]
	}
	return out
}

// Latest возвращает последнее добавленное значение
func (w *SlidingWindow[T]) Latest() (T, bool) {
	var zero T
	if w.size == 0 {
		return zero, false
	}
	return w.buf[(w.start+w.size-1)%len(w.buf)], true
}

// Fill заполняет окно целиком одним значением
func (w *SlidingWindow[T]) Fill(value T) {
	for i := range w.buf {
		w.buf[i] = value
	}
	w.start = 0
	w.size = len(w.buf)
}

// Reset очищает окно, сохраняя емкость
func (w *SlidingWindow[T]) Reset() {
	var zero T
	for i := range w.buf {
		w.buf[i] = zero
	}
	w.start = 0
	w.size = 0
}

func (w *SlidingWindow[T]) Len() int {
	return w.size
}

func (w *SlidingWindow[T]) Cap() int {
	return len(w.buf)
}
